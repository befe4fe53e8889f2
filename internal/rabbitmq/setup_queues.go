package rabbitmq

// RoutingConfirmation задаёт ключ, с которым шлюз публикует подтверждения платежей.
const RoutingConfirmation = "payment.confirmation"

// QueueConfig описывает очередь и её ключ привязки.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// ConfirmationQueues возвращает очереди воркера расчётов.
func ConfirmationQueues(queue string) []QueueConfig {
	return []QueueConfig{
		{QueueName: queue, RoutingKey: RoutingConfirmation},
	}
}
