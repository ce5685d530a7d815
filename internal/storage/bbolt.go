package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket   = []byte("config")   // schema version, timestamps
	EscrowBucket   = []byte("escrow")   // wrapped master secret record
	AliasBucket    = []byte("aliases")  // provider alias families for matching
	PackagesBucket = []byte("packages") // app package -> domain fallback table
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
)

var escrowRecordKey = []byte("record")

// Seed data. The alias list is deliberately narrow: exactly the three
// provider families the matcher has always shipped with.
var (
	defaultAliasGroups = [][]string{
		{"google", "youtube", "gmail"},
		{"microsoft", "outlook", "hotmail"},
		{"facebook", "instagram", "whatsapp"},
	}
	defaultPackageDomains = map[string]string{
		"instagram": "instagram.com",
		"facebook":  "facebook.com",
		"twitter":   "twitter.com",
		"github":    "github.com",
	}
)

// Store provides BBolt-based state storage for credvault: the escrow
// record and the data-driven matcher configuration. The vault blob
// itself lives in its own file and never passes through here.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the state database.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the bucket structure and seeds the matcher tables
// on first open.
func (s *Store) initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, EscrowBucket, AliasBucket, PackagesBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}
		now, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigCreated, now); err != nil {
			return err
		}
		if err := config.Put(ConfigModified, now); err != nil {
			return err
		}

		aliases := tx.Bucket(AliasBucket)
		for i, group := range defaultAliasGroups {
			data, err := json.Marshal(group)
			if err != nil {
				return err
			}
			if err := aliases.Put([]byte(fmt.Sprintf("group-%d", i)), data); err != nil {
				return err
			}
		}

		packages := tx.Bucket(PackagesBucket)
		for pkg, domain := range defaultPackageDomains {
			if err := packages.Put([]byte(pkg), []byte(domain)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetEscrowRecord persists the wrapped master secret record.
func (s *Store) SetEscrowRecord(record string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(EscrowBucket).Put(escrowRecordKey, []byte(record)); err != nil {
			return err
		}
		return s.touchModified(tx)
	})
}

// EscrowRecord retrieves the persisted record, or "" if none exists.
func (s *Store) EscrowRecord() (string, error) {
	var record string
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(EscrowBucket).Get(escrowRecordKey); v != nil {
			record = string(v)
		}
		return nil
	})
	return record, err
}

// DeleteEscrowRecord removes the record. Idempotent.
func (s *Store) DeleteEscrowRecord() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(EscrowBucket).Delete(escrowRecordKey); err != nil {
			return err
		}
		return s.touchModified(tx)
	})
}

// AliasGroups returns the provider alias families.
func (s *Store) AliasGroups() ([][]string, error) {
	var groups [][]string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(AliasBucket).ForEach(func(_, v []byte) error {
			var group []string
			if err := json.Unmarshal(v, &group); err != nil {
				return fmt.Errorf("corrupt alias group: %w", err)
			}
			groups = append(groups, group)
			return nil
		})
	})
	return groups, err
}

// PackageDomains returns the app-package to domain fallback table.
func (s *Store) PackageDomains() (map[string]string, error) {
	domains := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(PackagesBucket).ForEach(func(k, v []byte) error {
			domains[string(k)] = string(v)
			return nil
		})
	})
	return domains, err
}

// SetPackageDomain adds or replaces one fallback mapping.
func (s *Store) SetPackageDomain(pkg, domain string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(PackagesBucket).Put([]byte(pkg), []byte(domain)); err != nil {
			return err
		}
		return s.touchModified(tx)
	})
}

// Modified returns the last modification time.
func (s *Store) Modified() (time.Time, error) {
	var t time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(ConfigBucket).Get(ConfigModified)
		if v == nil {
			return nil
		}
		return t.UnmarshalBinary(v)
	})
	return t, err
}

func (s *Store) touchModified(tx *bolt.Tx) error {
	now, _ := time.Now().MarshalBinary()
	return tx.Bucket(ConfigBucket).Put(ConfigModified, now)
}
