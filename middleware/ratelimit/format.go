// utilitário pequeno para formatação de valores numéricos em headers.
//    Retry-After e X-RateLimit-* são sempre inteiros em segundos; arredonda para
//    cima para o cliente não voltar antes da janela virar.

package ratelimit

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem depender de fmt, e sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return formatInt(int(math.Ceil(d.Seconds())))
}
