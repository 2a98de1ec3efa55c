// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// OTPEmailData holds data for verification-code email templates.
type OTPEmailData struct {
	SiteName  string
	Code      string
	ExpiresIn string // e.g., "10 minutes"
	Purpose   string // "verify your email" or "reset your password"
}

// BuildOTPEmail creates a verification-code email with HTML and text bodies.
func BuildOTPEmail(data OTPEmailData) Email {
	return Email{
		To:       "", // Set by caller
		Subject:  fmt.Sprintf("Your %s verification code", data.SiteName),
		TextBody: buildOTPText(data),
		HTMLBody: buildOTPHTML(data),
	}
}

func buildOTPText(data OTPEmailData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Use this code to %s: %s\n\n", data.Purpose, data.Code))
	buf.WriteString(fmt.Sprintf("This code expires in %s.\n\n", data.ExpiresIn))
	buf.WriteString("If you did not request this code, you can safely ignore this email.\n")
	return buf.String()
}

func buildOTPHTML(data OTPEmailData) string {
	tmpl := template.Must(template.New("otp").Parse(otpHTMLTemplate))
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}

// TempPasswordEmailData holds data for the approval-notification email sent
// to a newly provisioned church admin.
type TempPasswordEmailData struct {
	SiteName     string
	ChurchName   string
	Email        string
	TempPassword string
}

// BuildTempPasswordEmail creates the approval email carrying a temporary
// password. The recipient is nudged to change it on first login.
func BuildTempPasswordEmail(data TempPasswordEmailData) Email {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Your application for %s has been approved.\n\n", data.ChurchName))
	buf.WriteString(fmt.Sprintf("Sign in with:\n  Email: %s\n  Temporary password: %s\n\n", data.Email, data.TempPassword))
	buf.WriteString("Please change this password after your first sign-in.\n")

	return Email{
		Subject:  fmt.Sprintf("%s: your church application was approved", data.SiteName),
		TextBody: buf.String(),
	}
}

// BuildRejectionEmail creates the notification sent when an application is
// rejected.
func BuildRejectionEmail(siteName, churchName, notes string) Email {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Your application for %s was not approved.\n", churchName))
	if notes != "" {
		buf.WriteString(fmt.Sprintf("\nReviewer notes: %s\n", notes))
	}
	return Email{
		Subject:  fmt.Sprintf("%s: update on your church application", siteName),
		TextBody: buf.String(),
	}
}

const otpHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Verification Code</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
          <!-- Header -->
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>

          <!-- Content -->
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                Use this code to {{.Purpose}}:
              </p>

              <!-- Code Box -->
              <div style="background-color: #f3f4f6; border-radius: 8px; padding: 24px; text-align: center; margin-bottom: 24px;">
                <span style="font-size: 32px; font-weight: 700; letter-spacing: 8px; color: #1f2937; font-family: 'Courier New', monospace;">{{.Code}}</span>
              </div>

              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">
                This code expires in {{.ExpiresIn}}.
              </p>
            </td>
          </tr>

          <!-- Footer -->
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">
                If you did not request this code, you can safely ignore this email.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
