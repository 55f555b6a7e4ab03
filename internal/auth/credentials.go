package auth

const (
	ReasonPasswordIncorrect = "password incorrect"
	ReasonAccessRestricted  = "access restricted"
	ReasonAuthenticated     = "authentication passed"
)

// Decision is the outcome of a credential check.
type Decision struct {
	Granted bool
	Reason  string
}

// Authenticate checks password against u. The password is compared first so
// an inactive account with a wrong password still reports the password.
func Authenticate(h PasswordHasher, u User, password string) Decision {
	if !h.Compare(u.Password, password) {
		return Decision{Reason: ReasonPasswordIncorrect}
	}
	if u.Status != StatusActive {
		return Decision{Reason: ReasonAccessRestricted}
	}
	return Decision{Granted: true, Reason: ReasonAuthenticated}
}
