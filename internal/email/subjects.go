package email

const (
	subjectConsultationRequest  = "New consultation request"
	subjectConsultationAccepted = "Your consultation was accepted"
	subjectConsultationDeclined = "Your consultation was declined"
	subjectPriceSet             = "A price was set for your consultation"
	subjectPaymentReceived      = "Payment received"
	subjectPriceRejected        = "Your price was rejected"
	subjectDefault              = "Consultation update"
)

var subjectsByType = map[string]string{
	"ConsultationRequest":  subjectConsultationRequest,
	"ConsultationAccepted": subjectConsultationAccepted,
	"ConsultationDeclined": subjectConsultationDeclined,
	"PriceSet":             subjectPriceSet,
	"PaymentReceived":      subjectPaymentReceived,
	"PriceRejected":        subjectPriceRejected,
}

// SubjectFor returns the subject line for a notification type.
func SubjectFor(notificationType string) string {
	if s, ok := subjectsByType[notificationType]; ok {
		return s
	}
	return subjectDefault
}
