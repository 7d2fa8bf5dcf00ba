package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graylag/shelltray/internal/model"
)

func TestLookupByID(t *testing.T) {
	records := []model.Record{
		makeRecord("a", "one", "", model.UrgencyNormal, 0),
		makeRecord("b", "two", "", model.UrgencyNormal, 0),
	}

	r := LookupByID(records, records[1].RecordID)
	require.NotNil(t, r)
	assert.Equal(t, "two", r.Summary)

	assert.Nil(t, LookupByID(records, "missing"))
}

func TestLookupByIndexOneBased(t *testing.T) {
	records := []model.Record{
		makeRecord("a", "one", "", model.UrgencyNormal, 0),
		makeRecord("b", "two", "", model.UrgencyNormal, 0),
	}

	r := LookupByIndex(records, 1)
	require.NotNil(t, r)
	assert.Equal(t, "one", r.Summary)

	assert.Nil(t, LookupByIndex(records, 0))
	assert.Nil(t, LookupByIndex(records, 3))
}

func TestSearchMatchesSummaryAndBody(t *testing.T) {
	records := []model.Record{
		makeRecord("a", "Download complete", "", model.UrgencyNormal, 0),
		makeRecord("b", "event", "team meeting at three", model.UrgencyNormal, 0),
		makeRecord("c", "other", "nothing here", model.UrgencyNormal, 0),
	}

	out := Search(records, "MEETING")
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].AppName)

	assert.Len(t, Search(records, ""), 3)
}

func TestUniqueApps(t *testing.T) {
	records := []model.Record{
		makeRecord("slack", "1", "", model.UrgencyNormal, 0),
		makeRecord("Firefox", "2", "", model.UrgencyNormal, 0),
		makeRecord("slack", "3", "", model.UrgencyNormal, 0),
		makeRecord("", "4", "", model.UrgencyNormal, 0),
	}

	apps := UniqueApps(records)
	assert.Equal(t, []string{"Firefox", "slack"}, apps)
}
