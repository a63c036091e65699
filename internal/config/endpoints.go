package config

import "net/url"

// DefaultAPIPrefix is prepended to every backend route.
const DefaultAPIPrefix = "/api/v1"

// AuthEndpoints are the routes used by the session manager.
type AuthEndpoints struct {
	Login           string
	Register        string
	Logout          string
	Refresh         string
	ResetPassword   string
	ConfirmPassword string
	VerifyEmail     string
}

// UserEndpoints are routes scoped to the signed-in user.
type UserEndpoints struct {
	Me                         string
	Password                   string
	List                       string
	FollowingPoliticians       string
	FollowingTopics            string
	Likes                      string
	Comments                   string
	History                    string
	Feed                       string
	Notifications              string
	MarkAllNotificationsAsRead string
}

// CollectionEndpoints are the list routes of the content resources.
type CollectionEndpoints struct {
	Politicians      string
	Parties          string
	Topics           string
	TrendingTopics   string
	Statements       string
	FollowStatements string
	SearchStatements string
	SearchAll        string
	Health           string
	Version          string
}

// Endpoints is the backend route table.
type Endpoints struct {
	prefix string

	Auth        AuthEndpoints
	Users       UserEndpoints
	Collections CollectionEndpoints
}

// NewEndpoints builds the route table under prefix.
func NewEndpoints(prefix string) Endpoints {
	p := func(path string) string { return prefix + path }

	return Endpoints{
		prefix: prefix,
		Auth: AuthEndpoints{
			Login:           p("/auth/login"),
			Register:        p("/auth/register"),
			Logout:          p("/auth/logout"),
			Refresh:         p("/auth/refresh"),
			ResetPassword:   p("/auth/password/reset"),
			ConfirmPassword: p("/auth/password/confirm"),
			VerifyEmail:     p("/auth/email/verify"),
		},
		Users: UserEndpoints{
			Me:                         p("/users/me"),
			Password:                   p("/users/password"),
			List:                       p("/users"),
			FollowingPoliticians:       p("/users/me/following/politicians"),
			FollowingTopics:            p("/users/me/following/topics"),
			Likes:                      p("/users/me/likes"),
			Comments:                   p("/users/me/comments"),
			History:                    p("/users/me/history"),
			Feed:                       p("/users/me/feed"),
			Notifications:              p("/users/me/notifications"),
			MarkAllNotificationsAsRead: p("/users/me/notifications/read-all"),
		},
		Collections: CollectionEndpoints{
			Politicians:      p("/politicians/"),
			Parties:          p("/parties/"),
			Topics:           p("/topics/"),
			TrendingTopics:   p("/topics/trending"),
			Statements:       p("/statements/"),
			FollowStatements: p("/statements/following"),
			SearchStatements: p("/search/statements"),
			SearchAll:        p("/search/all"),
			Health:           p("/health"),
			Version:          p("/version"),
		},
	}
}

// Prefix returns the route prefix, e.g. /api/v1.
func (e Endpoints) Prefix() string { return e.prefix }

// Resolve prefixes a relative route. Paths already carrying the prefix are
// returned unchanged.
func (e Endpoints) Resolve(path string) string {
	if len(path) >= len(e.prefix) && path[:len(e.prefix)] == e.prefix {
		return path
	}
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return e.prefix + path
}

func (e Endpoints) id(format, id string) string {
	return e.prefix + format + url.PathEscape(id)
}

func (e Endpoints) User(id string) string       { return e.id("/users/", id) }
func (e Endpoints) Politician(id string) string { return e.id("/politicians/", id) }
func (e Endpoints) Party(id string) string      { return e.id("/parties/", id) }
func (e Endpoints) Topic(id string) string      { return e.id("/topics/", id) }
func (e Endpoints) Statement(id string) string  { return e.id("/statements/", id) }
func (e Endpoints) Comment(id string) string    { return e.id("/comments/", id) }

func (e Endpoints) PoliticianFollow(id string) string { return e.Politician(id) + "/follow" }
func (e Endpoints) TopicFollow(id string) string      { return e.Topic(id) + "/follow" }
func (e Endpoints) StatementLike(id string) string    { return e.Statement(id) + "/like" }
func (e Endpoints) CommentLike(id string) string      { return e.Comment(id) + "/like" }

func (e Endpoints) StatementsByPolitician(id string) string {
	return e.id("/statements/politicians/", id)
}
func (e Endpoints) StatementsByParty(id string) string   { return e.id("/statements/parties/", id) }
func (e Endpoints) StatementsByTopic(id string) string   { return e.id("/statements/topics/", id) }
func (e Endpoints) CommentsByStatement(id string) string { return e.id("/comments/statements/", id) }

func (e Endpoints) MarkNotificationAsRead(id string) string {
	return e.id("/users/me/notifications/", id) + "/read"
}
