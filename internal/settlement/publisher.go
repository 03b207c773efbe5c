package settlement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

// InstructionWriter is the kafka surface the publisher needs; satisfied by
// *kafka.Writer and by test fakes.
type InstructionWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher pushes settlement instructions to the payments topic with bounded
// exponential-backoff retry. Exhaustion marks the instruction FAILED and
// raises for manual intervention; instructions are never silently dropped.
type Publisher struct {
	writer      InstructionWriter
	maxAttempts int
	baseBackoff time.Duration
	logger      *zap.Logger
}

// NewPublisher wires the instruction publisher.
func NewPublisher(writer InstructionWriter, maxAttempts int, baseBackoff time.Duration, logger *zap.Logger) *Publisher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseBackoff <= 0 {
		baseBackoff = 200 * time.Millisecond
	}
	return &Publisher{writer: writer, maxAttempts: maxAttempts, baseBackoff: baseBackoff, logger: logger}
}

// NewKafkaWriter builds the production writer for the payments topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Publish sends one instruction, retrying transient failures. On exhaustion
// the instruction is marked FAILED with the final cause.
func (p *Publisher) Publish(ctx context.Context, ins *model.SettlementInstruction) error {
	payload, err := json.Marshal(ins)
	if err != nil {
		return commonerr.Wrap(commonerr.KindSettlement, err, "marshal instruction %s", ins.ID)
	}
	msg := kafka.Message{
		Key:   []byte(ins.CashFlowID),
		Value: payload,
		Time:  time.Now().UTC(),
	}

	backoff := p.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = p.writer.WriteMessages(ctx, msg)
		if lastErr == nil {
			ins.Status = model.InstructionProcessing
			ins.UpdatedAt = time.Now().UTC()
			return nil
		}
		if ctx.Err() != nil {
			return commonerr.Wrap(commonerr.KindCancelled, ctx.Err(), "publish of instruction %s cancelled", ins.ID)
		}
		ins.RetryCount = attempt
		p.logger.Warn("instruction publish failed, backing off",
			zap.String("instruction_id", ins.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr))
		if attempt < p.maxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return commonerr.Wrap(commonerr.KindCancelled, ctx.Err(), "publish of instruction %s cancelled", ins.ID)
			}
			backoff *= 2
		}
	}

	ins.Status = model.InstructionFailed
	ins.FailReason = lastErr.Error()
	ins.UpdatedAt = time.Now().UTC()
	p.logger.Error("instruction publish exhausted retries, manual intervention required",
		zap.String("instruction_id", ins.ID),
		zap.Int("attempts", p.maxAttempts),
		zap.Error(lastErr))
	return commonerr.Wrap(commonerr.KindSettlement, lastErr, "publish exhausted for instruction %s", ins.ID)
}

// Close releases the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
