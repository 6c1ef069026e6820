package domain

// UserType is the role a user logs in as.
type UserType string

const (
	UserTypeGM      UserType = "gm"
	UserTypePlayer  UserType = "pl"
	UserTypeVisitor UserType = "visitor"
)

// NormalizeUserType coerces unknown role values to visitor. Request payloads
// are not trusted to be faithful to the definition.
func NormalizeUserType(t UserType) UserType {
	switch t {
	case UserTypeGM, UserTypePlayer, UserTypeVisitor:
		return t
	}
	return UserTypeVisitor
}

// UserStore is the payload of a user document, scoped to one room's tenant.
// Login counts the sessions currently authenticated as this user.
type UserStore struct {
	Name       string   `mapstructure:"name" json:"name"`
	Type       UserType `mapstructure:"type" json:"type"`
	Login      int      `mapstructure:"login" json:"login"`
	Password   string   `mapstructure:"password" json:"password"`
	IsExported bool     `mapstructure:"isExported" json:"isExported"`
	Token      string   `mapstructure:"token" json:"token"`
}

type UserLoginRequest struct {
	Name     string   `json:"name"`
	Password string   `json:"password"`
	Type     UserType `json:"type,omitempty"`
}

type UserLoginResponse struct {
	UserKey string `json:"userKey"`
	Token   string `json:"token"`
}

// ClientUserData is the user view broadcast to clients; the password and
// token never leave the server this way.
type ClientUserData struct {
	Key     string          `json:"key,omitempty"`
	RefList []DataReference `json:"refList"`
	Name    string          `json:"name"`
	Type    UserType        `json:"type"`
	Login   int             `json:"login"`
}
