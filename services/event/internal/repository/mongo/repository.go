package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nirbenah/final-project-backend/services/event/internal/repository"
)

// eventDocument — представление события в коллекции MongoDB.
// Отличается от domain типа только типом _id (ObjectID вместо hex строки).
type eventDocument struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty"`
	Title            string              `bson:"title"`
	Category         string              `bson:"category"`
	Description      string              `bson:"description"`
	Organizer        string              `bson:"organizer"`
	StartDate        time.Time           `bson:"start_date"`
	EndDate          time.Time           `bson:"end_date"`
	Location         string              `bson:"location"`
	Tickets          []repository.Ticket `bson:"tickets"`
	TicketsAvailable int64               `bson:"tickets_available"`
	MinPrice         float64             `bson:"min_price"`
	Image            string              `bson:"image,omitempty"`
	CommentsNumber   int64               `bson:"commentsNumber"`
}

func (d *eventDocument) toDomain() *repository.Event {
	return &repository.Event{
		ID:               d.ID.Hex(),
		Title:            d.Title,
		Category:         d.Category,
		Description:      d.Description,
		Organizer:        d.Organizer,
		StartDate:        d.StartDate,
		EndDate:          d.EndDate,
		Location:         d.Location,
		Tickets:          d.Tickets,
		TicketsAvailable: d.TicketsAvailable,
		MinPrice:         d.MinPrice,
		Image:            d.Image,
		CommentsNumber:   d.CommentsNumber,
	}
}

// Repository реализует EventRepository используя MongoDB
type Repository struct {
	client *mongo.Client
	db     *mongo.Database
	col    *mongo.Collection
}

// NewRepository создаёт новый MongoDB репозиторий
// Создаёт индекс на start_date при инициализации
func NewRepository(client *mongo.Client, dbName string) *Repository {
	db := client.Database(dbName)
	col := db.Collection("events")

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "start_date", Value: -1}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Если индекс уже существует - игнорируем ошибку
	_, _ = col.Indexes().CreateOne(ctx, indexModel)

	return &Repository{
		client: client,
		db:     db,
		col:    col,
	}
}

// Create сохраняет новое событие и возвращает hex ObjectID
func (r *Repository) Create(ctx context.Context, event *repository.Event) (string, error) {
	doc := eventDocument{
		Title:            event.Title,
		Category:         event.Category,
		Description:      event.Description,
		Organizer:        event.Organizer,
		StartDate:        event.StartDate,
		EndDate:          event.EndDate,
		Location:         event.Location,
		Tickets:          event.Tickets,
		TicketsAvailable: event.TicketsAvailable,
		MinPrice:         event.MinPrice,
		Image:            event.Image,
		CommentsNumber:   event.CommentsNumber,
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// GetByID возвращает событие по hex ObjectID
// Невалидный ID трактуется как ErrNotFound (как и отсутствие документа)
func (r *Repository) GetByID(ctx context.Context, id string) (*repository.Event, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}

	var doc eventDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// List возвращает страницу событий (page с 1) и общее количество
func (r *Repository) List(ctx context.Context, page, limit int64) ([]repository.Event, int64, error) {
	return r.list(ctx, bson.M{}, page, limit)
}

// ListAvailable возвращает страницу будущих событий с доступными билетами
func (r *Repository) ListAvailable(ctx context.Context, page, limit int64) ([]repository.Event, int64, error) {
	filter := bson.M{
		"start_date":        bson.M{"$gte": time.Now()},
		"tickets_available": bson.M{"$gt": 0},
	}
	return r.list(ctx, filter, page, limit)
}

func (r *Repository) list(ctx context.Context, filter bson.M, page, limit int64) ([]repository.Event, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	opts := options.Find().
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]repository.Event, 0, limit)
	for cursor.Next(ctx) {
		var doc eventDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, *doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	return events, total, nil
}

// Reserve атомарно уменьшает остаток билета и агрегат tickets_available.
// Фильтр требует available >= qty у элемента массива и tickets_available >= qty,
// апдейт через позиционный оператор меняет оба счётчика одним шагом —
// два конкурентных резерва не могут потратить последний билет дважды.
func (r *Repository) Reserve(ctx context.Context, eventID, ticketType string, qty int64) (*repository.Event, error) {
	oid, err := primitive.ObjectIDFromHex(eventID)
	if err != nil {
		return nil, repository.ErrNotFound
	}

	filter := bson.M{
		"_id": oid,
		"tickets": bson.M{"$elemMatch": bson.M{
			"name":      ticketType,
			"available": bson.M{"$gte": qty},
		}},
		"tickets_available": bson.M{"$gte": qty},
	}
	update := bson.M{
		"$inc": bson.M{
			"tickets.$.available": -qty,
			"tickets_available":   -qty,
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc eventDocument
	err = r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// Условие не выполнилось: различаем "события нет", "билета нет" и "не хватило"
	return nil, r.classifyFailure(ctx, oid, ticketType, repository.ErrInsufficientTickets)
}

// Release атомарно увеличивает остаток билета и агрегат tickets_available.
// Прекондиция available + qty <= quantity выражена через $expr: release без
// парного reserve (остаток уже на вместимости) отклоняется с ErrMaxReached.
func (r *Repository) Release(ctx context.Context, eventID, ticketType string, qty int64) (*repository.Event, error) {
	oid, err := primitive.ObjectIDFromHex(eventID)
	if err != nil {
		return nil, repository.ErrNotFound
	}

	filter := bson.M{
		"_id":     oid,
		"tickets": bson.M{"$elemMatch": bson.M{"name": ticketType}},
		"$expr": bson.M{"$anyElementTrue": bson.M{"$map": bson.M{
			"input": "$tickets",
			"as":    "t",
			"in": bson.M{"$and": bson.A{
				bson.M{"$eq": bson.A{"$$t.name", ticketType}},
				bson.M{"$lte": bson.A{
					bson.M{"$add": bson.A{"$$t.available", qty}},
					"$$t.quantity",
				}},
			}},
		}}},
	}
	update := bson.M{
		"$inc": bson.M{
			"tickets.$.available": qty,
			"tickets_available":   qty,
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc eventDocument
	err = r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	return nil, r.classifyFailure(ctx, oid, ticketType, repository.ErrMaxReached)
}

// classifyFailure читает документ после провалившегося условного апдейта,
// чтобы отличить отсутствие события/билета от нарушенной прекондиции
func (r *Repository) classifyFailure(ctx context.Context, oid primitive.ObjectID, ticketType string, precondErr error) error {
	var doc eventDocument
	err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.ErrNotFound
		}
		return err
	}
	event := doc.toDomain()
	if event.FindTicket(ticketType) == nil {
		return repository.ErrTicketNotFound
	}
	return precondErr
}

// SetMinPrice перезаписывает денормализованный min_price
func (r *Repository) SetMinPrice(ctx context.Context, eventID string, minPrice float64) error {
	oid, err := primitive.ObjectIDFromHex(eventID)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"min_price": minPrice}})
	if err != nil {
		return fmt.Errorf("set min_price: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateDates обновляет даты события
func (r *Repository) UpdateDates(ctx context.Context, eventID string, startDate, endDate time.Time) error {
	oid, err := primitive.ObjectIDFromHex(eventID)
	if err != nil {
		return repository.ErrNotFound
	}

	update := bson.M{"$set": bson.M{
		"start_date": startDate,
		"end_date":   endDate,
	}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update dates: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// IncrementComments увеличивает счётчик комментариев на 1
func (r *Repository) IncrementComments(ctx context.Context, eventID string) error {
	oid, err := primitive.ObjectIDFromHex(eventID)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"commentsNumber": 1}})
	if err != nil {
		return fmt.Errorf("increment comments: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
