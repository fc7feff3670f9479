package dto

type UserList struct {
	Items []UserProfile `json:"items"`
	Total int64         `json:"total"`
}

// AdminSession is returned after a successful admin login exchange. The
// token itself travels in the session cookie, never in the body.
type AdminSession struct {
	UID       string `json:"uid"`
	ExpiresIn int64  `json:"expires_in_seconds"`
}
