package announcements

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendMessage_DefaultsToStoreUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.SendMessage(ctx, author, SendMessageRequest{Subject: "hello", Content: "team"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"u2", "u3"}, m.Recipients)
	require.Equal(t, MessageGeneral, m.MessageType)

	m, err = svc.SendMessage(ctx, author, SendMessageRequest{Recipients: []string{"u1", "u4"}, Subject: "s", Content: "c"})
	require.NoError(t, err)
	require.Equal(t, []string{"u4"}, m.Recipients)
}

func TestMessageActions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.SendMessage(ctx, author, SendMessageRequest{Recipients: []string{"u2"}, Subject: "Task", Content: "do it", MessageType: MessageTask})
	require.NoError(t, err)

	_, err = svc.MarkMessageRead(ctx, author, m.ID)
	require.ErrorIs(t, err, ErrNotRecipient)

	_, err = svc.MarkMessageRead(ctx, sales, m.ID)
	require.ErrorIs(t, err, ErrMessageNotFound)

	n, err := svc.UnreadMessages(ctx, sameShop)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = svc.MarkMessageRead(ctx, sameShop, m.ID)
	require.NoError(t, err)
	n, err = svc.UnreadMessages(ctx, sameShop)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = svc.Respond(ctx, sameShop, m.ID)
	require.ErrorIs(t, err, ErrResponseNotRequired)

	reply, err := svc.Reply(ctx, sameShop, m.ID, ReplyRequest{Content: "done"})
	require.NoError(t, err)
	require.Equal(t, "Re: Task", reply.Subject)
	require.Equal(t, MessageTask, reply.MessageType)
	require.Equal(t, []string{"u1"}, reply.Recipients)
	require.Equal(t, m.ID, reply.ParentID)

	again, err := svc.Reply(ctx, author, reply.ID, ReplyRequest{Content: "thanks"})
	require.NoError(t, err)
	require.Equal(t, "Re: Task", again.Subject)
	require.Equal(t, []string{"u2"}, again.Recipients)
}

func TestThreads_ByReplyCount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	quiet, err := svc.SendMessage(ctx, author, SendMessageRequest{Recipients: []string{"u2"}, Subject: "quiet", Content: "c"})
	require.NoError(t, err)
	svc.clock = func() time.Time { return fixedNow.Add(-time.Hour) }
	busy, err := svc.SendMessage(ctx, author, SendMessageRequest{Recipients: []string{"u2"}, Subject: "busy", Content: "c", RequiresResponse: true})
	require.NoError(t, err)
	_, err = svc.Reply(ctx, sameShop, busy.ID, ReplyRequest{Content: "r"})
	require.NoError(t, err)

	threads, err := svc.Threads(ctx, author, MessageFilter{})
	require.NoError(t, err)
	require.Len(t, threads, 2)
	require.Equal(t, busy.ID, threads[0].ID)
	require.Equal(t, 1, threads[0].ReplyCount)
	require.Equal(t, quiet.ID, threads[1].ID)

	all, err := svc.ListMessages(ctx, platform, MessageFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	rd, err := svc.Respond(ctx, sameShop, busy.ID)
	require.NoError(t, err)
	require.True(t, rd.Responded)
}
