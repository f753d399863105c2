package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choruschat/chorus/core"
)

func TestInMemoryStore_AppendAndGetAll(t *testing.T) {
	s := NewInMemoryStore()

	require.NoError(t, s.Append("s1", core.NewUserMessage("s1", "req-1", "hello")))
	require.NoError(t, s.Append("s1", core.NewAssistantMessage("s1", "req-1", "b1", "hi there")))

	msgs, err := s.GetAll("s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi there", msgs[1].Content)
	assert.Equal(t, "b1", msgs[1].BackendKey)
}

func TestInMemoryStore_SessionIsolation(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Append("s1", core.NewUserMessage("s1", "req-1", "for s1")))

	msgs, err := s.GetAll("s2")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestInMemoryStore_Clear(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Append("s1", core.NewUserMessage("s1", "req-1", "a")))
	require.NoError(t, s.Append("s2", core.NewUserMessage("s2", "req-2", "b")))

	require.NoError(t, s.Clear("s1"))

	msgs, err := s.GetAll("s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = s.GetAll("s2")
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "clearing one session must not touch another")
}

func TestInMemoryStore_GetAllReturnsCopy(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Append("s1", core.NewUserMessage("s1", "req-1", "original")))

	msgs, err := s.GetAll("s1")
	require.NoError(t, err)
	msgs[0].Content = "tampered"

	fresh, err := s.GetAll("s1")
	require.NoError(t, err)
	assert.Equal(t, "original", fresh[0].Content)
}

func TestInMemoryStore_ConcurrentAppends(t *testing.T) {
	s := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := core.NewAssistantMessage("s1", "req-1", fmt.Sprintf("b%d", i), "resp")
			assert.NoError(t, s.Append("s1", msg))
		}(i)
	}
	wg.Wait()

	msgs, err := s.GetAll("s1")
	require.NoError(t, err)
	assert.Len(t, msgs, 20)
}
