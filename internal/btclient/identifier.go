package btclient

import (
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// ErrBadIdentifier is returned for input that is neither a magnet URI, an
// info hash nor a readable .torrent file.
var ErrBadIdentifier = errors.New("unrecognized torrent identifier")

// Source is a parsed identifier. Exactly one of Magnet and MetaInfo is set.
type Source struct {
	InfoHash string
	Magnet   string
	MetaInfo *metainfo.MetaInfo
}

// ParseIdentifier accepts a magnet URI, a 40 character hex or 32 character
// base32 info hash, or the path of a .torrent file.
func ParseIdentifier(id string) (Source, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Source{}, ErrBadIdentifier
	}

	if strings.HasPrefix(strings.ToLower(id), "magnet:") {
		m, err := metainfo.ParseMagnetUri(id)
		if err != nil {
			return Source{}, fmt.Errorf("%w: %w", ErrBadIdentifier, err)
		}
		return Source{InfoHash: m.InfoHash.HexString(), Magnet: id}, nil
	}

	if ih, ok := parseInfoHash(id); ok {
		return Source{InfoHash: ih, Magnet: "magnet:?xt=urn:btih:" + ih}, nil
	}

	if strings.HasSuffix(strings.ToLower(id), ".torrent") || fileExists(id) {
		mi, err := metainfo.LoadFromFile(id)
		if err != nil {
			return Source{}, fmt.Errorf("%w: loading %s: %w", ErrBadIdentifier, id, err)
		}
		return Source{InfoHash: mi.HashInfoBytes().HexString(), MetaInfo: mi}, nil
	}

	return Source{}, ErrBadIdentifier
}

// Trackers lists the announce URLs carried by the identifier, in tier
// order without duplicates.
func (s Source) Trackers() []string {
	if s.MetaInfo != nil {
		return announceList(s.MetaInfo.UpvertedAnnounceList())
	}
	if s.Magnet == "" {
		return nil
	}
	m, err := metainfo.ParseMagnetUri(s.Magnet)
	if err != nil {
		return nil
	}
	return announceList([][]string{m.Trackers})
}

// parseInfoHash returns the lower-case hex form of a bare v1 info hash.
func parseInfoHash(s string) (string, bool) {
	switch len(s) {
	case 40:
		b, err := hex.DecodeString(s)
		if err != nil {
			return "", false
		}
		return hex.EncodeToString(b), true
	case 32:
		b, err := base32.StdEncoding.DecodeString(strings.ToUpper(s))
		if err != nil || len(b) != 20 {
			return "", false
		}
		return hex.EncodeToString(b), true
	}
	return "", false
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
