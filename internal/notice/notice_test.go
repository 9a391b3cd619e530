package notice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_Drain(t *testing.T) {
	q := NewQueue()
	assert.Equal(t, []Notice{}, q.Drain())

	q.Notify(Info("Markets", "first"))
	q.Notify(Blocking("Location", "second"))
	assert.Equal(t, 2, q.Len())

	got := q.Drain()
	assert.Equal(t, []Notice{
		{Kind: KindInfo, Title: "Markets", Message: "first"},
		{Kind: KindBlocking, Title: "Location", Message: "second"},
	}, got)
	assert.Equal(t, 0, q.Len())
}

func TestNotifierFunc(t *testing.T) {
	var got []Notice
	n := NotifierFunc(func(x Notice) { got = append(got, x) })
	n.Notify(Confirm("Coupon", "sure?"))
	assert.Len(t, got, 1)
	assert.Equal(t, KindConfirm, got[0].Kind)

	Discard.Notify(Info("ignored", "ignored"))
}
