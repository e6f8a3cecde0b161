package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// PaymentID: id da venda ou "*" para receber todos os webhooks
type ClientMsg struct {
	Type      string `json:"type"`
	PaymentID string `json:"paymentId"`
}

// Wildcard inscreve o cliente em todos os webhooks processados
const Wildcard = "*"
