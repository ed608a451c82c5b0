package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taptag_otp_issued_total",
		Help: "Activation passcodes issued",
	})

	otpVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taptag_otp_verifications_total",
			Help: "Passcode verifications partitioned by result",
		},
		[]string{"result"},
	)

	otpDeliveryFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taptag_otp_delivery_failures_total",
		Help: "Passcodes that could not be handed to the SMS gateway",
	})

	activationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taptag_activations_total",
			Help: "Activation confirmations partitioned by result code",
		},
		[]string{"result"},
	)

	withdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taptag_withdrawal_requests_total",
			Help: "Withdrawal requests partitioned by result code",
		},
		[]string{"result"},
	)

	tagsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taptag_tags_generated_total",
		Help: "Tags created by bulk generation",
	})
)
