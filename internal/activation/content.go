package activation

import (
	"fmt"
	"strings"
)

const emailSubject = "Activate your Money Manager account"

// BuildEmail renders the activation email for a profile. The link points at
// the core service's activation endpoint.
func BuildEmail(baseURL, fullName, token string) (subject, body string) {
	link := fmt.Sprintf("%s/api/v1.0/activate?token=%s", strings.TrimRight(baseURL, "/"), token)
	body = "Hi " + fullName + ",\n\n" +
		"Click the link below to activate your account:\n" +
		link + "\n\n" +
		"If you did not register, please ignore this email."
	return emailSubject, body
}
