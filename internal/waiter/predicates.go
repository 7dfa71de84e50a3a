// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package waiter

import "github.com/flavienbert/digitalocean/internal/model"

// Present holds once k is listed under its own name.
func Present(k model.Key) Predicate {
	return func(keys []model.Key) bool {
		return model.ContainsExact(keys, k)
	}
}

// RenameVisible holds once renamed is listed under its new name and is the
// only observation of that key, i.e. the old-name entry is gone.
func RenameVisible(renamed model.Key) Predicate {
	return func(keys []model.Key) bool {
		return model.ContainsExact(keys, renamed) && model.CountSameResource(keys, renamed) == 1
	}
}

// NameListed holds once some key is listed under name.
func NameListed(name string) Predicate {
	return func(keys []model.Key) bool {
		_, ok := model.FindByName(keys, name)
		return ok
	}
}

// Absent holds once no listed key carries id.
func Absent(id model.KeyID) Predicate {
	return func(keys []model.Key) bool {
		return !model.HasID(keys, id)
	}
}

// All holds when every p holds.
func All(ps ...Predicate) Predicate {
	return func(keys []model.Key) bool {
		for _, p := range ps {
			if !p(keys) {
				return false
			}
		}
		return true
	}
}

// Listed holds once a key with the given id is listed.
func Listed(id model.KeyID) Predicate {
	return func(keys []model.Key) bool {
		return model.HasID(keys, id)
	}
}

// FingerprintListed holds once a key with fingerprint fp is listed.
func FingerprintListed(fp string) Predicate {
	return func(keys []model.Key) bool {
		for _, k := range keys {
			if k.Fingerprint == fp {
				return true
			}
		}
		return false
	}
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(keys []model.Key) bool { return !p(keys) }
}
