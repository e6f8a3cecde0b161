package topics

const (
	// Webhooks de pagamento já processados pelo pipeline
	PaymentWebhooks = "payment_webhooks"

	// DLQs
	PaymentWebhooksDLQ = "payment_webhooks_dlq"
)
