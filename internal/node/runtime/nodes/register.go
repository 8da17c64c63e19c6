package nodes

import (
	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
)

// Deps carries the shared clients the built-in executors need. Nil
// fields leave the corresponding executor unconfigured; it then fails
// at execution time with a clear message.
type Deps struct {
	Logger       logger.Logger
	RedisClient  *redis.Client
	SyncProducer sarama.SyncProducer
	OpenAIKey    string
}

// RegisterBuiltins installs every built-in executor on the registry.
func RegisterBuiltins(reg *runtime.Registry, deps Deps) {
	reg.Register(NewTransform())
	reg.Register(NewHTTPRequest())
	reg.Register(NewWait())
	reg.Register(NewLog(deps.Logger))
	reg.Register(NewNoop())
	reg.Register(NewDatabase())
	reg.Register(NewS3())
	reg.Register(NewMongoDB())
	reg.Register(NewRedis(deps.RedisClient))
	reg.Register(NewKafkaPublish(deps.SyncProducer))
	reg.Register(NewLLM(deps.OpenAIKey))
}
