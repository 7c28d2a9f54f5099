package docstore

import "strings"

// UsersCollection holds one profile document per user.
const UsersCollection = "users"

// ProfilePath is the public profile of uid.
func ProfilePath(uid string) string {
	return UsersCollection + "/" + uid
}

// StudiedPath is the StudiedSet document of uid.
func StudiedPath(uid string) string {
	return ProfilePath(uid) + "/data/studied"
}

// StatsPath is the StatsSet document of uid.
func StatsPath(uid string) string {
	return ProfilePath(uid) + "/data/stats"
}

// FriendsCollection holds the friend edges added by uid.
func FriendsCollection(uid string) string {
	return ProfilePath(uid) + "/friends"
}

// FriendPath is the edge from uid to friendUID.
func FriendPath(uid, friendUID string) string {
	return FriendsCollection(uid) + "/" + friendUID
}

// inCollection reports whether path names a document directly under
// collection.
func inCollection(collection, path string) bool {
	rest, ok := strings.CutPrefix(path, collection+"/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}
