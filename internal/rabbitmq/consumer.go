package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
)

// Handler обрабатывает тело сообщения. Ошибка возвращает сообщение в очередь.
type Handler func(ctx context.Context, body []byte) error

// ConsumerMessage читает очередь queueName и обрабатывает до workers сообщений параллельно.
// Возвращаемый WaitGroup завершается, когда остановлен приём и выполнены начатые обработчики.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, workers int, handler Handler, log *slog.Logger) (*sync.WaitGroup, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer wg.Done()
					defer func() { <-sem }()
					if err := handler(ctx, d.Body); err != nil {
						log.Warn("message requeued", slog.String("queue", queueName), sl.Err(err))
						if nackErr := d.Nack(false, true); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := d.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return wg, nil
}
