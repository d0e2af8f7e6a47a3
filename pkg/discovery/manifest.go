// Package discovery fetches and interprets the WOPI client's discovery
// document: which applications and actions the client offers per file
// extension, the URL templates for those actions, and the proof keys the
// client signs requests with.
package discovery

import (
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/marmos91/dittowopi/pkg/proof"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// ErrNoProofKey is returned when the manifest carries no usable proof key.
var ErrNoProofKey = errors.New("discovery: no proof key published")

const extensionMemoSize = 256

// Action is one <action> of one <app> in the discovery document.
type Action struct {
	App          string `json:"app"`
	FavIconURL   string `json:"favIconUrl"`
	CheckLicense bool   `json:"checkLicense"`
	Name         string `json:"name"`
	Ext          string `json:"ext"`
	ProgID       string `json:"progid"`
	IsDefault    bool   `json:"isDefault"`
	URLSrc       string `json:"urlsrc"`
	Requires     string `json:"requires"`
}

// ProofKey holds the raw <proof-key> attributes.
type ProofKey struct {
	Value       string
	Modulus     string
	Exponent    string
	OldValue    string
	OldModulus  string
	OldExponent string
}

// KeyPair decodes the current and old keys. The current key is required;
// an undecodable old key is dropped.
func (p ProofKey) KeyPair() (proof.KeyPair, error) {
	current, err := proof.ParseKey(p.Value, p.Modulus, p.Exponent)
	if err != nil {
		if errors.Is(err, proof.ErrNoKey) {
			return proof.KeyPair{}, ErrNoProofKey
		}
		return proof.KeyPair{}, fmt.Errorf("decode current proof key: %w", err)
	}

	old, err := proof.ParseKey(p.OldValue, p.OldModulus, p.OldExponent)
	if err != nil {
		old = nil
	}

	return proof.KeyPair{Current: current, Old: old}, nil
}

// Manifest is a parsed discovery document. It is immutable once parsed
// apart from the internal per-extension memo.
type Manifest struct {
	Actions  []Action
	ProofKey ProofKey

	memo *lru.Cache[string, []Action]
}

type xmlDiscovery struct {
	XMLName  xml.Name     `xml:"wopi-discovery"`
	NetZones []xmlNetZone `xml:"net-zone"`
	Apps     []xmlApp     `xml:"app"`
	ProofKey *xmlProofKey `xml:"proof-key"`
}

type xmlNetZone struct {
	Name string   `xml:"name,attr"`
	Apps []xmlApp `xml:"app"`
}

type xmlApp struct {
	Name         string      `xml:"name,attr"`
	FavIconURL   string      `xml:"favIconUrl,attr"`
	CheckLicense string      `xml:"checkLicense,attr"`
	Actions      []xmlAction `xml:"action"`
}

type xmlAction struct {
	Name     string  `xml:"name,attr"`
	Ext      string  `xml:"ext,attr"`
	ProgID   string  `xml:"progid,attr"`
	Default  *string `xml:"default,attr"`
	URLSrc   string  `xml:"urlsrc,attr"`
	Requires string  `xml:"requires,attr"`
}

type xmlProofKey struct {
	Value       string `xml:"value,attr"`
	Modulus     string `xml:"modulus,attr"`
	Exponent    string `xml:"exponent,attr"`
	OldValue    string `xml:"oldvalue,attr"`
	OldModulus  string `xml:"oldmodulus,attr"`
	OldExponent string `xml:"oldexponent,attr"`
}

// Parse decodes a discovery document. When netZone is non-empty only apps
// of that <net-zone> are kept; apps placed directly under the root are
// always kept.
func Parse(data []byte, netZone string) (*Manifest, error) {
	var doc xmlDiscovery
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse discovery document: %w", err)
	}

	apps := append([]xmlApp(nil), doc.Apps...)
	for _, zone := range doc.NetZones {
		if netZone != "" && !strings.EqualFold(zone.Name, netZone) {
			continue
		}
		apps = append(apps, zone.Apps...)
	}

	m := &Manifest{}
	for _, app := range apps {
		checkLicense := strings.EqualFold(app.CheckLicense, "true")
		for _, a := range app.Actions {
			m.Actions = append(m.Actions, Action{
				App:          app.Name,
				FavIconURL:   app.FavIconURL,
				CheckLicense: checkLicense,
				Name:         a.Name,
				Ext:          strings.ToLower(a.Ext),
				ProgID:       a.ProgID,
				IsDefault:    a.Default != nil,
				URLSrc:       a.URLSrc,
				Requires:     a.Requires,
			})
		}
	}

	if pk := doc.ProofKey; pk != nil {
		m.ProofKey = ProofKey{
			Value:       pk.Value,
			Modulus:     pk.Modulus,
			Exponent:    pk.Exponent,
			OldValue:    pk.OldValue,
			OldModulus:  pk.OldModulus,
			OldExponent: pk.OldExponent,
		}
	}

	memo, err := lru.New[string, []Action](extensionMemoSize)
	if err != nil {
		return nil, err
	}
	m.memo = memo

	return m, nil
}

// ActionsFor returns the actions whose ext matches fileName's extension,
// default actions last and otherwise in document order. The result is a
// fresh slice the caller may modify.
func (m *Manifest) ActionsFor(fileName string) []Action {
	ext := metadata.Extension(fileName)

	if m.memo != nil {
		if cached, ok := m.memo.Get(ext); ok {
			return append([]Action(nil), cached...)
		}
	}

	var matched []Action
	for _, a := range m.Actions {
		if a.Ext == ext {
			matched = append(matched, a)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return !matched[i].IsDefault && matched[j].IsDefault
	})

	if m.memo != nil {
		m.memo.Add(ext, matched)
	}
	return append([]Action(nil), matched...)
}

// Find returns the first action in actions named name.
func Find(actions []Action, name string) (Action, bool) {
	for _, a := range actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}
