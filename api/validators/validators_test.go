package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

type contactRequest struct {
	Name  string `json:"name" validate:"required,max=5"`
	Phone string `json:"phone" validate:"required,ethphone"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyValidatesWithJSONFieldNames(t *testing.T) {
	var dest contactRequest
	err := DecodeJSONBody(post(`{"name":"ሰላም ሰላም","phone":"0811234567"}`), &dest)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at most 5", details["name"])
	assert.Equal(t, "must be an Ethiopian mobile number", details["phone"])
}

func TestDecodeJSONBodyCountsRunesNotBytes(t *testing.T) {
	var dest contactRequest
	require.NoError(t, DecodeJSONBody(post(`{"name":"ጤፍ","phone":"+251911234567"}`), &dest))
	assert.Equal(t, "ጤፍ", dest.Name)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var dest contactRequest
	err := DecodeJSONBody(post(`{"name":"a","phone":"0911234567","admin":true}`), &dest)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestParsePageDefaultsAndBounds(t *testing.T) {
	page, err := ParsePage(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, pagination.Page{Page: 1, Limit: pagination.DefaultLimit}, page)

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?limit=0", nil))
	require.Error(t, err)

	_, err = ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?unreadOnly=maybe", nil), "unreadOnly")
	require.Error(t, err)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "left at gate", CleanText("  left\n\tat   gate "))
	assert.Equal(t, "", CleanText(" \n "))

	assert.Nil(t, CleanOptional(nil))
	blank := "   "
	assert.Nil(t, CleanOptional(&blank))
	reason := " ዘግይቷል \n"
	cleaned := CleanOptional(&reason)
	require.NotNil(t, cleaned)
	assert.Equal(t, "ዘግይቷል", *cleaned)
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":    ``,
		"syntax":   `{"name":`,
		"type":     `{"name":5,"phone":"0911234567"}`,
		"trailing": `{"name":"a","phone":"0911234567"} {"name":"b"}`,
		"too big":  `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		var dest contactRequest
		err := DecodeJSONBody(post(body), &dest)
		require.Error(t, err, name)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code(), name)
	}
}
