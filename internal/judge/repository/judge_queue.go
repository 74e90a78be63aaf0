package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
)

// JudgeQueue hands accepted submissions to the grading workers.
type JudgeQueue interface {
	Enqueue(ctx context.Context, msg model.JudgeMessage) error
}

type MQJudgeQueue struct {
	queue      mq.Producer
	topic      string
	maxRetries int
}

func NewMQJudgeQueue(queue mq.Producer, topic string, maxRetries int) *MQJudgeQueue {
	return &MQJudgeQueue{queue: queue, topic: topic, maxRetries: maxRetries}
}

func (q *MQJudgeQueue) Enqueue(ctx context.Context, msg model.JudgeMessage) error {
	if q == nil || q.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("judge queue is not configured")
	}
	if msg.SubmissionID <= 0 {
		return appErr.ValidationError("submission_id", "must be positive")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal judge message failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = strconv.FormatInt(msg.SubmissionID, 10)
	message.MaxRetries = q.maxRetries
	if err := q.queue.Publish(ctx, q.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.JudgeQueueFull, "enqueue submission %d failed", msg.SubmissionID)
	}
	return nil
}

// DecodeJudgeMessage parses a queue payload.
func DecodeJudgeMessage(message *mq.Message) (model.JudgeMessage, error) {
	if message == nil {
		return model.JudgeMessage{}, appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	var msg model.JudgeMessage
	if err := json.Unmarshal(message.Body, &msg); err != nil {
		return model.JudgeMessage{}, appErr.Wrapf(err, appErr.InvalidFormat, "decode judge message failed")
	}
	if msg.SubmissionID <= 0 {
		return model.JudgeMessage{}, appErr.ValidationError("submission_id", "must be positive")
	}
	return msg, nil
}
