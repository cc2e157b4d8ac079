package tss

import "strconv"

// Command names, also used as metric and span labels.
const (
	CommandInit   = "init"
	CommandCache  = "cache"
	CommandSecret = "secret"
)

// InitArgs registers the client with Secret Server: init --url U -r RULE [-k KEY].
func InitArgs(url, rule, key string) []string {
	args := []string{CommandInit, "--url", url, "-r", rule}
	if key != "" {
		args = append(args, "-k", key)
	}
	return args
}

// CacheArgs sets the local cache policy: cache --strategy S --age MINUTES.
func CacheArgs(strategy, ageMinutes string) []string {
	return []string{CommandCache, "--strategy", strategy, "--age", ageMinutes}
}

// SecretAllFieldsArgs dumps every field of a secret as a JSON object: secret -s ID -ad.
func SecretAllFieldsArgs(id int) []string {
	return []string{CommandSecret, "-s", strconv.Itoa(id), "-ad"}
}

// SecretFieldArgs fetches a single field as plain text: secret -s ID -f FIELD.
func SecretFieldArgs(id int, field string) []string {
	return []string{CommandSecret, "-s", strconv.Itoa(id), "-f", field}
}

// CommandName returns the tss sub-command of an argument list.
func CommandName(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
