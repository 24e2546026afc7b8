package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromQuery_Defaults(t *testing.T) {
	params := FromQuery(url.Values{})
	assert.Equal(t, DefaultPage, params.Page)
	assert.Equal(t, DefaultLimit, params.Limit)
	assert.Equal(t, int32(0), params.Offset)
	assert.Equal(t, DefaultSort, params.Sort)
}

func TestFromQuery_Values(t *testing.T) {
	q := url.Values{"page": {"3"}, "limit": {"25"}, "sort": {"oldest"}}
	params := FromQuery(q)
	assert.Equal(t, int32(3), params.Page)
	assert.Equal(t, int32(25), params.Limit)
	assert.Equal(t, int32(50), params.Offset)
	assert.Equal(t, "oldest", params.Sort)
}

func TestFromQuery_ClampsAndIgnoresInvalid(t *testing.T) {
	q := url.Values{"page": {"-1"}, "limit": {"9999"}, "sort": {"sideways"}}
	params := FromQuery(q)
	assert.Equal(t, DefaultPage, params.Page)
	assert.Equal(t, MaxLimit, params.Limit)
	assert.Equal(t, DefaultSort, params.Sort)
}

func TestFromQuery_Options(t *testing.T) {
	params := FromQuery(url.Values{}, WithDefaultLimit(50), WithDefaultSort("oldest"))
	assert.Equal(t, int32(50), params.Limit)
	assert.Equal(t, "oldest", params.Sort)

	params = FromQuery(url.Values{}, WithDefaultLimit(-1), WithDefaultSort("sideways"))
	assert.Equal(t, DefaultLimit, params.Limit)
	assert.Equal(t, DefaultSort, params.Sort)
}

func TestHasNext(t *testing.T) {
	assert.True(t, HasNext(0, 10, 11))
	assert.False(t, HasNext(0, 10, 10))
	assert.False(t, HasNext(10, 10, 5))
}
