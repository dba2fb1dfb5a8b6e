package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(botCommandsTotal) }

var botCommandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bot_commands_total",
		Help: "Bot commands received, by command and outcome.",
	},
	[]string{"command", "outcome"}, // outcome: ok | authorized | unauthorized
)

func IncBotCommand(command, outcome string) {
	botCommandsTotal.WithLabelValues(norm(command), norm(outcome)).Inc()
}
