package odata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStringEscapesQuotes(t *testing.T) {
	e := Eq("subject", String("Bob's (draft) 100% #1"))
	assert.Equal(t, "subject eq 'Bob''s (draft) 100% #1'", e.String())
}

func TestAndDropsNilAndFlattens(t *testing.T) {
	inner := And(Eq("a", String("1")), nil)
	e := And(inner, Eq("b", String("2")), nil)
	assert.Equal(t, "a eq '1' and b eq '2'", e.String())
	assert.Equal(t, "a eq '1'", inner.String())
}

func TestDateTimeWindow(t *testing.T) {
	at := time.Date(2023, 4, 5, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	e := And(
		Ge("receivedDateTime", DateTime(at.Add(-time.Minute))),
		Le("receivedDateTime", DateTime(at.Add(time.Minute))),
	)
	assert.Equal(t, "receivedDateTime ge 2023-04-05T07:59:00Z and receivedDateTime le 2023-04-05T08:01:00Z", e.String())

	assert.True(t, e.Match(Record{"receivedDateTime": at.Add(59 * time.Second)}))
	assert.True(t, e.Match(Record{"receivedDateTime": at.Add(-time.Minute)}))
	assert.False(t, e.Match(Record{"receivedDateTime": at.Add(61 * time.Second)}))
	assert.False(t, e.Match(Record{}))
}

func TestAnySerializesAndMatches(t *testing.T) {
	e := Any("emailAddresses", "e", Eq("address", String("jane@example.com")))
	assert.Equal(t, "emailAddresses/any(e:e/address eq 'jane@example.com')", e.String())

	rec := Record{"emailAddresses": []Record{
		{"address": "other@example.com"},
		{"address": "Jane@Example.com"},
	}}
	assert.True(t, e.Match(rec))
	assert.False(t, e.Match(Record{"emailAddresses": []Record{}}))
	assert.False(t, e.Match(Record{"emailAddresses": "jane@example.com"}))
}

func TestMatchTypeMismatch(t *testing.T) {
	assert.False(t, Eq("subject", String("x")).Match(Record{"subject": 42}))
	assert.False(t, Eq("receivedDateTime", DateTime(time.Now())).Match(Record{"receivedDateTime": "now"}))
}

func TestFormatNil(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "displayName eq 'Inbox'", Format(Eq("displayName", String("Inbox"))))
}
