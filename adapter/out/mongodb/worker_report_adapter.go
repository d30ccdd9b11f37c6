package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"report_worker/core/domain"
	"report_worker/core/port/out"
)

const (
	collectionReports = "agency_reports"

	// Reports above this size are stored gzip-compressed.
	reportCompressionThreshold = 512
)

// ReportAdapter implements out.ReportRepository using MongoDB.
type ReportAdapter struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewReportAdapter creates a new MongoDB report adapter.
func NewReportAdapter(db *mongo.Database) *ReportAdapter {
	return &ReportAdapter{
		collection: db.Collection(collectionReports),
		now:        time.Now,
	}
}

// EnsureIndexes creates the indexes List relies on.
func (a *ReportAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "year", Value: -1},
				{Key: "month", Value: -1},
				{Key: "agency", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "agency", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// reportDocument is the stored shape of a report row.
type reportDocument struct {
	Agency string `bson:"agency"`
	Month  int    `bson:"month"`
	Year   int    `bson:"year"`

	Body         []byte `bson:"body"`
	IsCompressed bool   `bson:"is_compressed"`
	OriginalSize int64  `bson:"original_size"`

	CreatedAt time.Time `bson:"created_at"`
}

// Insert appends a report. Rows are never replaced, matching the warehouse.
func (a *ReportAdapter) Insert(ctx context.Context, record *domain.ReportRecord) error {
	doc, err := a.toDocument(record)
	if err != nil {
		return fmt.Errorf("failed to convert report to document: %w", err)
	}

	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// List returns reports newest period first, then by agency.
func (a *ReportAdapter) List(ctx context.Context, query domain.ReportQuery) ([]*domain.ReportRecord, error) {
	findOpts := options.Find().SetSort(bson.D{
		{Key: "year", Value: -1},
		{Key: "month", Value: -1},
		{Key: "agency", Value: 1},
	})
	if query.Limit > 0 {
		findOpts.SetLimit(int64(query.Limit))
	}

	cursor, err := a.collection.Find(ctx, listFilter(query), findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*domain.ReportRecord, 0)
	for cursor.Next(ctx) {
		var doc reportDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		record, err := toRecord(&doc)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return records, nil
}

func listFilter(query domain.ReportQuery) bson.M {
	filter := bson.M{}
	switch len(query.Agencies) {
	case 0:
	case 1:
		filter["agency"] = query.Agencies[0]
	default:
		filter["agency"] = bson.M{"$in": query.Agencies}
	}
	if query.Month > 0 {
		filter["month"] = query.Month
	}
	if query.Year > 0 {
		filter["year"] = query.Year
	}
	return filter
}

func (a *ReportAdapter) toDocument(record *domain.ReportRecord) (*reportDocument, error) {
	body := []byte(record.Report)
	doc := &reportDocument{
		Agency:       record.Agency,
		Month:        record.Month,
		Year:         record.Year,
		Body:         body,
		OriginalSize: int64(len(body)),
		CreatedAt:    record.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = a.now().UTC()
	}

	if len(body) > reportCompressionThreshold {
		compressed, err := compressReport(body)
		if err != nil {
			return nil, fmt.Errorf("failed to compress report: %w", err)
		}
		doc.Body = compressed
		doc.IsCompressed = true
	}
	return doc, nil
}

func toRecord(doc *reportDocument) (*domain.ReportRecord, error) {
	body := doc.Body
	if doc.IsCompressed {
		decompressed, err := decompressReport(body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress report: %w", err)
		}
		body = decompressed
	}

	return &domain.ReportRecord{
		Agency:    doc.Agency,
		Month:     doc.Month,
		Year:      doc.Year,
		Report:    string(body),
		CreatedAt: doc.CreatedAt,
	}, nil
}

func compressReport(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressReport(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

var _ out.ReportRepository = (*ReportAdapter)(nil)
