package oauth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestSpaceDelimitedArray_JSON(t *testing.T) {
	tests := []struct {
		name  string
		array SpaceDelimitedArray
		json  string
	}{
		{
			name:  "multiple values",
			array: SpaceDelimitedArray{"openid", "profile", "email"},
			json:  `"openid profile email"`,
		},
		{
			name:  "single value",
			array: SpaceDelimitedArray{"openid"},
			json:  `"openid"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.array)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			var got SpaceDelimitedArray
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.array, got)
		})
	}
	t.Run("empty string", func(t *testing.T) {
		var got SpaceDelimitedArray
		require.NoError(t, json.Unmarshal([]byte(`""`), &got))
		assert.Nil(t, got)
	})
}

func TestSpaceDelimitedArray_UnmarshalText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want SpaceDelimitedArray
	}{
		{
			name: "multiple values",
			text: "openid profile",
			want: SpaceDelimitedArray{"openid", "profile"},
		},
		{
			name: "empty text keeps the set empty",
			text: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SpaceDelimitedArray
			require.NoError(t, got.UnmarshalText([]byte(tt.text)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpaceDelimitedArray_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		want    SpaceDelimitedArray
		wantErr bool
	}{
		{
			name: "string",
			src:  "openid profile",
			want: SpaceDelimitedArray{"openid", "profile"},
		},
		{
			name: "bytes",
			src:  []byte("openid"),
			want: SpaceDelimitedArray{"openid"},
		},
		{
			name: "empty string",
			src:  "",
			want: SpaceDelimitedArray{},
		},
		{
			name: "nil",
			src:  nil,
			want: nil,
		},
		{
			name:    "unsupported type",
			src:     42,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SpaceDelimitedArray
			err := got.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			value, err := got.Value()
			require.NoError(t, err)
			assert.Equal(t, got.String(), value)
		})
	}
}

func TestAudience_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    Audience
		wantErr bool
	}{
		{
			name: "single string",
			json: `"client1"`,
			want: Audience{"client1"},
		},
		{
			name: "array",
			json: `["client1","client2"]`,
			want: Audience{"client1", "client2"},
		},
		{
			name:    "array with non string",
			json:    `["client1",2]`,
			wantErr: true,
		},
		{
			name:    "number",
			json:    `2`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Audience
			err := json.Unmarshal([]byte(tt.json), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAudience_MarshalJSON(t *testing.T) {
	t.Run("single value as string", func(t *testing.T) {
		data, err := json.Marshal(Audience{"client1"})
		require.NoError(t, err)
		assert.JSONEq(t, `"client1"`, string(data))
	})
	t.Run("multiple values as array", func(t *testing.T) {
		data, err := json.Marshal(Audience{"client1", "client2"})
		require.NoError(t, err)
		assert.JSONEq(t, `["client1","client2"]`, string(data))
	})
}

func TestLocales_UnmarshalText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Locales
	}{
		{
			name: "valid tags",
			text: "de-CH en",
			want: Locales{language.MustParse("de-CH"), language.English},
		},
		{
			name: "invalid tag dropped",
			text: "de !!! en",
			want: Locales{language.German, language.English},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Locales
			require.NoError(t, got.UnmarshalText([]byte(tt.text)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTime_JSON(t *testing.T) {
	moment := time.Unix(1700000000, 0).UTC()
	data, err := json.Marshal(FromTime(moment))
	require.NoError(t, err)
	assert.Equal(t, "1700000000", string(data))

	var got Time
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, moment, got.AsTime())
}

func TestNewEncoder(t *testing.T) {
	type request struct {
		Scopes  SpaceDelimitedArray `schema:"scope"`
		Locales Locales             `schema:"ui_locales,omitempty"`
	}
	values := make(map[string][]string)
	err := NewEncoder().Encode(request{
		Scopes:  SpaceDelimitedArray{"openid", "profile"},
		Locales: Locales{language.German, language.English},
	}, values)
	require.NoError(t, err)
	assert.Equal(t, []string{"openid profile"}, values["scope"])
	assert.Equal(t, []string{"de en"}, values["ui_locales"])
}
