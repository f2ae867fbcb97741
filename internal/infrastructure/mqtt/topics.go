package mqtt

import "strings"

// DefaultBaseTopic is the topic prefix used when none is configured.
const DefaultBaseTopic = "dbcore/events"

// Topics builds the topics events are published on.
//
// Pool names are used as topic levels verbatim except for the MQTT
// wildcard and separator characters, which are replaced by "_".
type Topics struct {
	Base string
}

func (t Topics) base() string {
	b := strings.TrimRight(t.Base, "/")
	if b == "" {
		return DefaultBaseTopic
	}
	return b
}

// Status returns the retained online/offline status topic.
func (t Topics) Status() string {
	return t.base() + "/status"
}

// Pool returns the topic for a pool event of the given kind.
func (t Topics) Pool(pool, kind string) string {
	return t.base() + "/pool/" + level(pool) + "/" + level(kind)
}

// StatementSlow returns the topic for slow statements on a pool.
func (t Topics) StatementSlow(pool string) string {
	return t.base() + "/statement/" + level(pool) + "/slow"
}

// StatementError returns the topic for failed statements on a pool.
func (t Topics) StatementError(pool string) string {
	return t.base() + "/statement/" + level(pool) + "/error"
}

// AllPoolEvents returns a wildcard matching every pool event.
func (t Topics) AllPoolEvents() string {
	return t.base() + "/pool/#"
}

// AllStatements returns a wildcard matching every statement event.
func (t Topics) AllStatements() string {
	return t.base() + "/statement/#"
}

// level makes s safe as a single topic level. Direct connections have no
// pool name and publish under "direct".
func level(s string) string {
	if s == "" {
		return "direct"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
