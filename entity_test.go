package databus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/databus"
	"github.com/casualjim/databus/bus"
	"github.com/casualjim/databus/bus/membus"
)

func TestEntity(t *testing.T) {
	t.Run("takes ownership of a positive handle", func(t *testing.T) {
		rt := membus.New()
		ent, err := databus.NewEntity(rt, rt.CreateParticipant(0), "create participant")
		require.NoError(t, err)
		assert.True(t, ent.Valid())
		assert.True(t, ent.Get().Valid())
	})

	t.Run("creation fails on a non-positive handle", func(t *testing.T) {
		rt := membus.New()
		ent, err := databus.NewEntity(rt, bus.Handle(bus.StatusBadParameter), "create reader for speed")
		require.Error(t, err)
		assert.Nil(t, ent)

		var cerr *databus.CreationError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, bus.StatusBadParameter, cerr.Code)
		assert.Contains(t, cerr.Error(), "create reader for speed")
	})

	t.Run("close deletes exactly once", func(t *testing.T) {
		rt := membus.New()
		ent, err := databus.NewEntity(rt, rt.CreateParticipant(0), "create participant")
		require.NoError(t, err)

		before := rt.DeleteCount()
		ent.Close()
		assert.False(t, ent.Valid())
		assert.Equal(t, before+1, rt.DeleteCount())

		ent.Close()
		assert.Equal(t, before+1, rt.DeleteCount(), "second close must not delete again")
	})

	t.Run("release detaches ownership", func(t *testing.T) {
		rt := membus.New()
		ent, err := databus.NewEntity(rt, rt.CreateParticipant(0), "create participant")
		require.NoError(t, err)

		h := ent.Release()
		assert.True(t, h.Valid())
		assert.False(t, ent.Valid())
		assert.Equal(t, bus.HandleNil, ent.Get())

		before := rt.DeleteCount()
		ent.Close()
		assert.Equal(t, before, rt.DeleteCount(), "released entity must not delete")

		// The detached handle is now the caller's to delete.
		assert.Equal(t, bus.StatusOK, rt.Delete(h))
	})

	t.Run("released handle can seed a new owner", func(t *testing.T) {
		rt := membus.New()
		src, err := databus.NewEntity(rt, rt.CreateParticipant(0), "create participant")
		require.NoError(t, err)

		dst, err := databus.NewEntity(rt, src.Release(), "adopt participant")
		require.NoError(t, err)
		assert.False(t, src.Valid())
		assert.True(t, dst.Valid())

		before := rt.DeleteCount()
		src.Close()
		dst.Close()
		assert.Equal(t, before+1, rt.DeleteCount(), "only the new owner deletes")
	})
}
