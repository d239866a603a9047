package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/timebucket/internal/core/period"
)

func TestCapabilities_Check(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	plus530 := time.FixedZone("+05:30", 5*3600+30*60)

	narrow := Capabilities{Units: []period.Unit{period.Day, period.Week, period.Month, period.Year}}
	wide := Capabilities{Units: period.Units, Zones: true, DayStart: true}

	tests := []struct {
		name        string
		caps        Capabilities
		query       GroupQuery
		wantFeature string
	}{
		{name: "supported", caps: narrow, query: GroupQuery{Unit: period.Day, Location: time.UTC}},
		{name: "nil location is utc", caps: narrow, query: GroupQuery{Unit: period.Week}},
		{name: "value field", caps: narrow, query: GroupQuery{Unit: period.Day, Field: "value"}},
		{name: "quarter", caps: narrow, query: GroupQuery{Unit: period.Quarter}, wantFeature: "period quarter"},
		{name: "zone", caps: narrow, query: GroupQuery{Unit: period.Day, Location: paris}, wantFeature: "time_zone"},
		{name: "day start", caps: narrow, query: GroupQuery{Unit: period.Day, DayStart: time.Hour}, wantFeature: "day_start"},
		{name: "multiples", caps: wide, query: GroupQuery{Unit: period.Minute, N: 15}, wantFeature: "n=15"},
		{name: "data field", caps: wide, query: GroupQuery{Unit: period.Day, Field: "amount"}, wantFeature: `field "amount"`},
		{name: "named zone on wide backend", caps: wide, query: GroupQuery{Unit: period.Quarter, Location: paris, DayStart: time.Hour}},
		{name: "fixed offset", caps: wide, query: GroupQuery{Unit: period.Day, Location: plus530}, wantFeature: "fixed-offset time_zone +05:30"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.caps.Check("testdb", tc.query)
			if tc.wantFeature == "" {
				require.NoError(t, err)
				return
			}
			var unsupported *UnsupportedBackendOperationError
			require.True(t, errors.As(err, &unsupported))
			require.Equal(t, "testdb", unsupported.Backend)
			require.Equal(t, tc.wantFeature, unsupported.Feature)
			require.Equal(t, tc.wantFeature+" is not supported for testdb", err.Error())
		})
	}
}

func TestZoneName(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	name, ok := ZoneName(paris)
	require.True(t, ok)
	require.Equal(t, "Europe/Paris", name)

	_, ok = ZoneName(time.FixedZone("-08:00", -8*3600))
	require.False(t, ok)

	require.True(t, IsUTC(nil))
	require.True(t, IsUTC(time.UTC))
	require.False(t, IsUTC(paris))
}
