// Package config manages the portal's persisted settings document.
//
// The document is a small YAML file holding the access point name, its
// passphrase, the device address, and a few behavior knobs. Loading is
// deliberately forgiving: a missing or malformed document is replaced with
// built-in defaults and written back, so the device always boots into a
// usable state. Saving is atomic (temp file + rename) so a power loss
// mid-write cannot leave a truncated document behind.
//
// # Usage Example
//
//	store := config.NewStore("/data/config.yaml")
//	settings, _ := store.Load()
//	settings.NetworkName = "Workshop-Portal"
//	if err := store.Save(settings); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// File operations are protected by a mutex. The Settings value itself is a
// plain struct; in the running portal it is owned by the orchestrator and
// never mutated concurrently.
package config
