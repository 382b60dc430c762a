package queues

// Имена очередей (Kafka-топиков) платформы.
// Продюсеры и консьюмеры импортируют константы отсюда, а не держат строки у себя —
// контракт на payload каждой очереди описан в messages.go.
const (
	// TopicEventTickets — возврат билетов в наличие (Event service консьюмер).
	TopicEventTickets = "event-tickets-queue"
	// TopicEventComments — инкремент счётчика комментариев события.
	TopicEventComments = "event-comments-queue"
	// TopicOrderDelete — удаление заказа с компенсациями (Order service консьюмер).
	TopicOrderDelete = "order-delete-queue"
	// TopicOrderRefund — возврат денег по заказу, с повторными попытками.
	TopicOrderRefund = "order-refund-queue"
	// TopicOrderStartDate — перенос даты события, обновляет снапшоты в заказах.
	TopicOrderStartDate = "order-startDate-queue"
	// TopicNextEventPost — оплачен заказ, возможно обновить "ближайшее событие" пользователя.
	TopicNextEventPost = "user-nextEvent-post-queue"
	// TopicNextEventPut — заказ изменён, проекцию надо обновить или пересчитать.
	TopicNextEventPut = "user-nextEvent-put-queue"
	// TopicNextEventDelete — заказ удалён, проекция пересчитывается при совпадении.
	TopicNextEventDelete = "user-nextEvent-delete-queue"
)

// DLQTopic возвращает имя dead-letter топика для сервиса.
func DLQTopic(service string) string {
	return service + "-dlq"
}
