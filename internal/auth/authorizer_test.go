package auth

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var (
	creator  = common.BytesToAddress([]byte{0x01})
	admin    = common.BytesToAddress([]byte{0x02})
	stranger = common.BytesToAddress([]byte{0x03})
)

func TestEmptyCreatorListIsOpen(t *testing.T) {
	a := New(nil, []common.Address{admin})
	assert.True(t, a.CanCreateMarkets(stranger))
	assert.True(t, a.CanCreateMarkets(admin))
}

func TestCreatorAllowList(t *testing.T) {
	a := New([]common.Address{creator}, []common.Address{admin})
	assert.True(t, a.CanCreateMarkets(creator))
	assert.False(t, a.CanCreateMarkets(stranger))
	assert.False(t, a.CanCreateMarkets(admin), "admin is not implicitly a creator")
}

func TestIsAdmin(t *testing.T) {
	a := New([]common.Address{creator}, []common.Address{admin})
	assert.True(t, a.IsAdmin(admin))
	assert.False(t, a.IsAdmin(creator))

	empty := New(nil, nil)
	assert.False(t, empty.IsAdmin(admin), "empty admin list grants nobody")
}

func TestPauseFlag(t *testing.T) {
	a := New(nil, nil)
	assert.False(t, a.Paused())

	a.SetPaused(true)
	assert.True(t, a.Paused())

	a.SetPaused(false)
	assert.False(t, a.Paused())
}

func TestRuntimeCreatorChanges(t *testing.T) {
	a := New([]common.Address{creator}, nil)

	a.AddCreator(stranger)
	assert.True(t, a.CanCreateMarkets(stranger))

	a.RemoveCreator(stranger)
	assert.False(t, a.CanCreateMarkets(stranger))
	assert.True(t, a.CanCreateMarkets(creator))
}
