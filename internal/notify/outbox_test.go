package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/notify"
	mocknotify "github.com/tggeco/challenge-api/internal/notify/mock"
	mockqueue "github.com/tggeco/challenge-api/internal/queue/mock"
)

func TestQueueOutbox(t *testing.T) {
	t.Run("Enqueues", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		q := mockqueue.NewMockQueuer(ctrl)
		q.EXPECT().
			Enqueue(gomock.Any(), gomock.Cond(func(m any) bool {
				e, ok := m.(notify.Event)
				return ok && e.Kind == notify.KindTeamInvite && e.To == "bob@example.com"
			})).
			Return(nil).
			Times(1)

		o := notify.NewQueueOutbox(q, logger.Logger)
		o.Enqueue(context.Background(), notify.TeamInvite("bob@example.com", "Green", "Ada", "tok"))
	})

	t.Run("FailureIsSwallowed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		q := mockqueue.NewMockQueuer(ctrl)
		q.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(errors.New("queue down")).Times(1)

		o := notify.NewQueueOutbox(q, logger.Logger)
		assert.NotPanics(t, func() {
			o.Enqueue(context.Background(), notify.Welcome("ada@example.com", "Ada"))
		})
	})
}

func TestDirectOutbox(t *testing.T) {
	t.Run("SendsAfterRequestCancelled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := mocknotify.NewMockSender(ctrl)
		sender.EXPECT().
			Send(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ notify.Email) error {
				return ctx.Err()
			}).
			Times(1)

		o := notify.NewDirectOutbox(notify.NewDispatcher(sender, appURL, logger.Logger))

		ctx, cancel := context.WithCancel(context.Background())
		o.Enqueue(ctx, notify.Welcome("ada@example.com", "Ada"))
		cancel()

		o.Wait()
	})

	t.Run("FailureIsSwallowed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := mocknotify.NewMockSender(ctrl)
		sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("nope")).Times(2)

		o := notify.NewDirectOutbox(notify.NewDispatcher(sender, appURL, logger.Logger))
		o.Enqueue(context.Background(), notify.Welcome("ada@example.com", "Ada"))
		o.Enqueue(context.Background(), notify.Welcome("bob@example.com", "Bob"))

		o.Wait()
	})
}
