package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{"", FrequencyDaily, false},
		{"daily", FrequencyDaily, false},
		{" Weekly ", FrequencyWeekly, false},
		{"hourly", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSubscription_Defaults(t *testing.T) {
	sub, err := NewSubscription("sub-1", "u2", "g2", Destination{ChannelID: "c2"}, "", nil, []string{"Go", "go", " rust "}, testNow)
	require.NoError(t, err)

	assert.True(t, sub.Active)
	assert.Nil(t, sub.LastSent)
	assert.Equal(t, FrequencyDaily, sub.Frequency)
	assert.Equal(t, AllSources, sub.Sources)
	assert.Equal(t, []string{"go", "rust"}, sub.Tags)
}

func TestNewSubscription_UnknownSource(t *testing.T) {
	_, err := NewSubscription("sub-1", "u2", "g2", Destination{ChannelID: "c2"}, FrequencyDaily, []string{"slashdot"}, nil, testNow)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSubscription_IsDue(t *testing.T) {
	tests := []struct {
		name     string
		freq     Frequency
		lastSent *time.Time
		active   bool
		now      time.Time
		want     bool
	}{
		{"never sent", FrequencyDaily, nil, true, testNow, true},
		{"inactive never sent", FrequencyDaily, nil, false, testNow, false},
		{"daily one hour later", FrequencyDaily, &testNow, true, testNow.Add(time.Hour), false},
		{"daily just before 24h", FrequencyDaily, &testNow, true, testNow.Add(24*time.Hour - time.Second), false},
		{"daily at 24h", FrequencyDaily, &testNow, true, testNow.Add(24 * time.Hour), true},
		{"weekly after 6 days", FrequencyWeekly, &testNow, true, testNow.AddDate(0, 0, 6), false},
		{"weekly after 7 days", FrequencyWeekly, &testNow, true, testNow.AddDate(0, 0, 7), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &Subscription{Frequency: tt.freq, LastSent: tt.lastSent, Active: tt.active}
			assert.Equal(t, tt.want, sub.IsDue(tt.now))
		})
	}
}

func TestSubscription_MarkSentIsMonotonic(t *testing.T) {
	sub := &Subscription{Frequency: FrequencyDaily, Active: true}

	sub.MarkSent(testNow)
	require.NotNil(t, sub.LastSent)
	assert.Equal(t, testNow, *sub.LastSent)

	sub.MarkSent(testNow.Add(-time.Hour))
	assert.Equal(t, testNow, *sub.LastSent)

	sub.MarkSent(testNow.Add(25 * time.Hour))
	assert.Equal(t, testNow.Add(25*time.Hour), *sub.LastSent)
}

func TestSubscription_ApplyKeepsWatermark(t *testing.T) {
	sub, err := NewSubscription("sub-1", "u2", "g2", Destination{ChannelID: "c2"}, FrequencyDaily, nil, nil, testNow)
	require.NoError(t, err)
	sub.MarkSent(testNow)

	err = sub.Apply(Destination{ChannelID: "c3"}, FrequencyWeekly, []string{"reddit"}, []string{"go"}, testNow.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, testNow, *sub.LastSent)
	assert.Equal(t, FrequencyWeekly, sub.Frequency)
	assert.Equal(t, "c3", sub.Destination.ChannelID)
	assert.Equal(t, testNow.AddDate(0, 0, 7), sub.NextDue(testNow.Add(time.Hour)))
}
