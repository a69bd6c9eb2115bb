package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/domain"
)

var ErrInvalidSignal = errors.New("invalid signal payload")

// PublishSignal writes a signal envelope authored by sender and bumps the
// trigger key, mirroring the original terminals' write pattern.
func PublishSignal(ctx context.Context, ch Channel, group string, status domain.Signal, sender domain.Sender) error {
	env := domain.SignalEnvelope{Status: status, Sender: sender, SentAt: time.Now()}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal signal failed: %w", err)
	}
	if err := ch.Publish(ctx, SignalKey(group), payload); err != nil {
		return err
	}
	return ch.Publish(ctx, TriggerKey(group), []byte(strconv.FormatInt(time.Now().UnixNano(), 10)))
}

// DecodeSignal parses a signal payload, rejecting unknown statuses and
// envelopes whose sender does not own the carried signal.
func DecodeSignal(value []byte) (domain.SignalEnvelope, error) {
	var env domain.SignalEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if !env.Status.Valid() || !env.Sender.Owns(env.Status) {
		return env, ErrInvalidSignal
	}
	return env, nil
}

func PublishDraft(ctx context.Context, ch Channel, group string, draft *domain.TransactionDraft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft failed: %w", err)
	}
	return ch.Publish(ctx, DraftKey(group), payload)
}

func GetDraft(ctx context.Context, ch Channel, group string) (*domain.TransactionDraft, error) {
	value, err := ch.Get(ctx, DraftKey(group))
	if err != nil {
		return nil, err
	}
	return DecodeDraft(value)
}

func DecodeDraft(value []byte) (*domain.TransactionDraft, error) {
	var draft domain.TransactionDraft
	if err := json.Unmarshal(value, &draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft failed: %w", err)
	}
	return &draft, nil
}

func PublishSession(ctx context.Context, ch Channel, group string, sess domain.PaymentContext) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	return ch.Publish(ctx, SessionKey(group), payload)
}

func GetSession(ctx context.Context, ch Channel, group string) (*domain.PaymentContext, error) {
	value, err := ch.Get(ctx, SessionKey(group))
	if err != nil {
		return nil, err
	}
	var sess domain.PaymentContext
	if err := json.Unmarshal(value, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return &sess, nil
}
