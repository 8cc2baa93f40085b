package store

type Store interface {
	CreateUser(user *User) (int64, error)
	UserByID(userID int64) (*User, error)
	UserByUsername(username string) (*User, error)
	UserByGoogleID(googleID string) (*User, error)
	SetSecret(userID int64, secret string) error
	UsersWithSecret() ([]User, error)
	CreateSession(sessionID string, userID int64, expiresAt int64) (*Session, error)
	DeleteSessionsByUserID(userID int64) (err error)
	DeleteSessionBySessionID(sessionID string) (err error)
	SessionAndUserBySessionID(sessionID string) (*Session, *User, error)
	RefreshSession(sessionID string, newExpiresAt int64) error
	Close() error
}

func New(dbPath string) (Store, error) {
	return newSQLiteStore(dbPath)
}
