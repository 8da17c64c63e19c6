package nodes

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
)

// MongoDB inserts or finds documents in a collection.
type MongoDB struct{}

func NewMongoDB() *MongoDB { return &MongoDB{} }

func (m *MongoDB) Type() string { return "mongodb" }

func (m *MongoDB) ConfigSchema() map[string]interface{} {
	return schema([]string{"uri", "database", "collection", "operation"}, map[string]interface{}{
		"uri":        prop("string", "MongoDB connection URI"),
		"database":   prop("string", "Database name"),
		"collection": prop("string", "Collection name"),
		"operation":  prop("string", "insert or find"),
		"document":   prop("object", "Document to insert"),
		"filter":     prop("object", "Query filter for find"),
		"limit":      prop("number", "Maximum documents returned by find"),
	})
}

func (m *MongoDB) Execute(ctx context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	uri, err := stringConfig(cfg, "uri")
	if err != nil {
		return nil, err
	}
	database, err := stringConfig(cfg, "database")
	if err != nil {
		return nil, err
	}
	collectionName, err := stringConfig(cfg, "collection")
	if err != nil {
		return nil, err
	}
	operation, err := stringConfig(cfg, "operation")
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	defer client.Disconnect(ctx)

	collection := client.Database(database).Collection(collectionName)

	switch operation {
	case "insert":
		document, ok := cfg["document"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("config field 'document' must be a mapping")
		}
		result, err := collection.InsertOne(ctx, bson.M(document))
		if err != nil {
			return nil, fmt.Errorf("insert failed: %w", err)
		}
		return map[string]interface{}{"insertedId": fmt.Sprintf("%v", result.InsertedID)}, nil

	case "find":
		filter := bson.M{}
		if raw, ok := cfg["filter"].(map[string]interface{}); ok {
			filter = bson.M(raw)
		}
		findOpts := options.Find()
		if limit := optionalInt(cfg, "limit", 0); limit > 0 {
			findOpts.SetLimit(int64(limit))
		}
		cursor, err := collection.Find(ctx, filter, findOpts)
		if err != nil {
			return nil, fmt.Errorf("find failed: %w", err)
		}
		defer cursor.Close(ctx)

		var documents []interface{}
		for cursor.Next(ctx) {
			var doc map[string]interface{}
			if err := cursor.Decode(&doc); err != nil {
				return nil, fmt.Errorf("failed to decode document: %w", err)
			}
			documents = append(documents, doc)
		}
		if err := cursor.Err(); err != nil {
			return nil, fmt.Errorf("cursor iteration failed: %w", err)
		}
		return map[string]interface{}{"documents": documents, "count": len(documents)}, nil

	default:
		return nil, fmt.Errorf("unsupported operation '%s'", operation)
	}
}
