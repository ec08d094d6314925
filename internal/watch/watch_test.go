package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/cache"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
)

// echoChatter replies "re: <message>" and records the history length it saw.
type echoChatter struct {
	mu       sync.Mutex
	gate     map[string]chan struct{} // Optional per-message gate
	entered  chan string
	historyN []int
}

func (c *echoChatter) Chat(_ context.Context, _ model.ContentItem, history []model.ChatMessage, message string) string {
	c.mu.Lock()
	c.historyN = append(c.historyN, len(history))
	g := c.gate[message]
	c.mu.Unlock()
	if c.entered != nil {
		c.entered <- message
	}
	if g != nil {
		<-g
	}
	return "re: " + message
}

type countingSummarizer struct {
	calls atomic.Int32
	err   error
}

func (s *countingSummarizer) Summarize(_ context.Context, title, _ string) (*model.Summary, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &model.Summary{Summary: "about " + title, KeyTakeaways: []string{"a", "b", "c"}, Vibe: "calm"}, nil
}

var (
	itemA = model.ContentItem{ID: "v1", Title: "Neural Networks", Description: "How AI thinks"}
	itemB = model.ContentItem{ID: "v2", Title: "Interstellar", Description: "Warp drives"}
)

func TestSendRejectsEmptyAndUnopened(t *testing.T) {
	s := NewSession(&echoChatter{}, &countingSummarizer{}, nil)

	_, _, err := s.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoItem)

	s.Open(itemA)
	_, _, err = s.Send(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, s.Chat())
}

func TestSendAppendsUserAndReply(t *testing.T) {
	chatter := &echoChatter{}
	s := NewSession(chatter, &countingSummarizer{}, nil)
	s.Open(itemA)

	user, reply, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, "re: hi", reply.Text)

	_, _, err = s.Send(context.Background(), "again")
	require.NoError(t, err)

	chat := s.Chat()
	require.Len(t, chat, 4)
	assert.Equal(t, []string{"hi", "re: hi", "again", "re: again"},
		[]string{chat[0].Text, chat[1].Text, chat[2].Text, chat[3].Text})
	assert.Equal(t, []int{0, 2}, chatter.historyN)
}

func TestOverlappingTurnsAreAnsweredInOrder(t *testing.T) {
	chatter := &echoChatter{
		gate:    map[string]chan struct{}{"first": make(chan struct{})},
		entered: make(chan string, 2),
	}
	s := NewSession(chatter, &countingSummarizer{}, nil)
	s.Open(itemA)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = s.Send(context.Background(), "first")
	}()
	require.Equal(t, "first", <-chatter.entered)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = s.Send(context.Background(), "second")
	}()
	require.Eventually(t, func() bool { return len(s.Chat()) == 2 }, time.Second, time.Millisecond)

	// The second turn must not start before the first reply lands.
	select {
	case m := <-chatter.entered:
		t.Fatalf("turn %q started early", m)
	case <-time.After(20 * time.Millisecond):
	}

	close(chatter.gate["first"])
	wg.Wait()

	chat := s.Chat()
	require.Len(t, chat, 4)
	assert.Equal(t, []string{"first", "re: first", "second", "re: second"},
		[]string{chat[0].Text, chat[1].Text, chat[2].Text, chat[3].Text})
}

func TestReplyForReplacedSessionIsDropped(t *testing.T) {
	chatter := &echoChatter{
		gate:    map[string]chan struct{}{"slow": make(chan struct{})},
		entered: make(chan string, 1),
	}
	s := NewSession(chatter, &countingSummarizer{}, nil)
	s.Open(itemA)

	type result struct {
		reply *model.ChatMessage
		err   error
	}
	done := make(chan result, 1)
	go func() {
		_, reply, err := s.Send(context.Background(), "slow")
		done <- result{reply, err}
	}()
	<-chatter.entered

	s.Open(itemB)
	close(chatter.gate["slow"])

	r := <-done
	require.NoError(t, r.err)
	assert.Nil(t, r.reply)
	assert.Empty(t, s.Chat())
	got, _ := s.Item()
	assert.Equal(t, "v2", got.ID)
}

func TestReopeningSameItemKeepsChat(t *testing.T) {
	s := NewSession(&echoChatter{}, &countingSummarizer{}, nil)
	s.Open(itemA)
	_, _, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)

	s.Open(itemA)
	assert.Len(t, s.Chat(), 2)
}

func TestSummarizeIsCachedPerItem(t *testing.T) {
	c := cache.New("", time.Minute, 16, nil)
	defer c.Close()
	summarizer := &countingSummarizer{}
	s := NewSession(&echoChatter{}, summarizer, c)

	s.Open(itemA)
	first, err := s.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "about Neural Networks", first.Summary)
	assert.Equal(t, first, s.Summary())

	s.Open(itemB)
	assert.Nil(t, s.Summary())
	s.Open(itemA)
	again, err := s.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Summary, again.Summary)
	assert.Equal(t, int32(1), summarizer.calls.Load())
}

func TestSummarizeErrorLeavesNoSummary(t *testing.T) {
	s := NewSession(&echoChatter{}, &countingSummarizer{err: errors.New("unavailable")}, nil)
	s.Open(itemA)

	_, err := s.Summarize(context.Background())
	assert.Error(t, err)
	assert.Nil(t, s.Summary())
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) PublishCommentPosted(_ context.Context, itemID string, c model.Comment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, itemID+"/"+c.ID)
	return nil
}

func TestCommentsSeedDefaults(t *testing.T) {
	c := NewComments(nil)

	got := c.List(itemA)
	require.Len(t, got, 2)
	assert.Equal(t, "QuantumExplorer", got[0].Author)
	assert.Equal(t, 142, got[0].Likes)
	assert.Equal(t, "FutureVoyager", got[1].Author)

	published := model.ContentItem{ID: "v-ai-1", Comments: []model.Comment{}}
	assert.Empty(t, c.List(published))
}

func TestPostPrependsComment(t *testing.T) {
	n := &recordingNotifier{}
	c := NewComments(n)

	_, err := c.Post(context.Background(), itemA, " ")
	assert.ErrorIs(t, err, ErrEmptyText)

	posted, err := c.Post(context.Background(), itemA, "Great video")
	require.NoError(t, err)
	assert.Equal(t, CommentAuthor, posted.Author)
	assert.Equal(t, "Just now", posted.Timestamp)
	assert.Zero(t, posted.Likes)
	assert.Regexp(t, `^c-[0-9A-Z]{26}$`, posted.ID)

	thread := c.List(itemA)
	require.Len(t, thread, 3)
	assert.Equal(t, posted, thread[0])
	assert.Equal(t, []string{"v1/" + posted.ID}, n.events)
}
