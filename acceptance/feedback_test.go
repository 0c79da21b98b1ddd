//go:build acceptance
// +build acceptance

package acceptance

import (
	"net/http"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackForm_AntiBot(t *testing.T) {
	WithTestFixtures(t, func(t *testing.T, f *TestFixtures) {
		ctx := f.PW.NewContext(t)
		defer ctx.Close()

		page := NewSitePage(t, ctx, f.Site.URL)
		page.Goto("/feedback")

		inspected := page.Inspect()
		require.Len(t, inspected.Forms, 1)
		form := inspected.Forms[0]
		assert.True(t, form.Captcha, "feedback form should carry a captcha")
		assert.Equal(t, []string{"website"}, form.Honeypots)
		assert.True(t, form.HasField("message"))
		assert.True(t, inspected.Protected())
	})
}

func TestFeedbackForm_SubmitWithoutCaptchaIsRejected(t *testing.T) {
	WithTestFixtures(t, func(t *testing.T, f *TestFixtures) {
		ctx := f.PW.NewContext(t)
		defer ctx.Close()

		page := NewSitePage(t, ctx, f.Site.URL)
		page.Goto("/feedback")

		form := page.Page.Locator("form#feedback")
		require.NoError(t, form.Locator("input[name='name']").Fill("Тест"))
		require.NoError(t, form.Locator("input[name='email']").Fill("test@example.com"))
		require.NoError(t, form.Locator("textarea[name='message']").Fill("Проверка формы"))

		resp, err := page.Page.ExpectResponse("**/feedback", func() error {
			return form.Locator("button[type='submit']").Click()
		}, playwright.PageExpectResponseOptions{Timeout: playwright.Float(10000)})
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.Status())

		require.NoError(t, page.Page.Locator(".error").WaitFor())
		text, err := page.Page.Locator(".error").TextContent()
		require.NoError(t, err)
		assert.Contains(t, text, "не робот")
	})
}
