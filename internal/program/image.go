package program

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// TagOpaqueObject marks a host object the exporter could not lower to plain
// CBOR data. It decodes to OpaqueObject.
const TagOpaqueObject = 55800

// Image is the CBOR program interchange written by host-side exporters.
type Image struct {
	ByteCode    []byte        `cbor:"byteCode"`
	Symbols     []ImageSymbol `cbor:"symbols"`
	EntryPoints []ImageSymbol `cbor:"entryPoints"` // export order
	Heap        []ImageSlot   `cbor:"heap"`
}

// ImageSymbol is one symbol table row.
type ImageSymbol struct {
	Name     string `cbor:"name"`
	Type     string `cbor:"type,omitempty"`
	Address  uint32 `cbor:"address"`
	Exported bool   `cbor:"exported,omitempty"`
}

// ImageSlot is one heap slot. Value is arbitrary CBOR data.
type ImageSlot struct {
	Address uint32 `cbor:"address"`
	Type    string `cbor:"type,omitempty"`
	Value   any    `cbor:"value"`
}

// OpaqueObject is a host object that only survived export as its type name
// and string rendering. It refuses JSON serialization.
type OpaqueObject struct {
	Type string `cbor:"type"`
	Repr string `cbor:"repr"`
}

// ErrOpaque is returned when an opaque host object is serialized.
var ErrOpaque = errors.New("opaque host object")

// MarshalJSON always fails; opaque objects have no structured form.
func (o OpaqueObject) MarshalJSON() ([]byte, error) {
	return nil, fmt.Errorf("%w of type %s", ErrOpaque, o.Type)
}

// String returns the host's rendering of the object.
func (o OpaqueObject) String() string { return o.Repr }

// UnmarshalCBOR decodes a slot. A value that cannot be decoded into plain
// data (a map keyed by integers, say) is kept with generic map types or, if
// even that fails, replaced by an Unserializable carrying the declared type,
// so one odd slot never fails the whole image.
func (s *ImageSlot) UnmarshalCBOR(data []byte) error {
	var wire struct {
		Address uint32          `cbor:"address"`
		Type    string          `cbor:"type,omitempty"`
		Value   cbor.RawMessage `cbor:"value"`
	}
	if err := imageDecMode.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Address, s.Type, s.Value = wire.Address, wire.Type, nil
	if len(wire.Value) == 0 {
		return nil
	}

	var v any
	if err := imageDecMode.Unmarshal(wire.Value, &v); err == nil {
		s.Value = v
		return nil
	}
	if err := genericDecMode.Unmarshal(wire.Value, &v); err == nil {
		s.Value = v
		return nil
	}
	u := Unserializable{}
	if wire.Type != "" {
		typ := wire.Type
		u.Type = &typ
	}
	s.Value = u
	return nil
}

var (
	imageEncMode cbor.EncMode
	imageDecMode cbor.DecMode

	// genericDecMode keeps non-string map keys (map[any]any).
	genericDecMode cbor.DecMode
)

func init() {
	tags := cbor.NewTagSet()
	err := tags.Add(
		cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired},
		reflect.TypeOf(OpaqueObject{}),
		TagOpaqueObject,
	)
	if err != nil {
		panic(fmt.Sprintf("program: failed to register CBOR tags: %v", err))
	}

	em, err := cbor.CanonicalEncOptions().EncModeWithTags(tags)
	if err != nil {
		panic(fmt.Sprintf("program: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecModeWithTags(tags)
	if err != nil {
		panic(fmt.Sprintf("program: failed to create CBOR dec mode: %v", err))
	}
	imageDecMode = dm

	gm, err := cbor.DecOptions{}.DecModeWithTags(tags)
	if err != nil {
		panic(fmt.Sprintf("program: failed to create CBOR dec mode: %v", err))
	}
	genericDecMode = gm
}

// MarshalImage serializes an Image to canonical CBOR.
func MarshalImage(img *Image) ([]byte, error) {
	return imageEncMode.Marshal(img)
}

// UnmarshalImage deserializes an Image from CBOR bytes.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := imageDecMode.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("program: unmarshal image: %w", err)
	}
	return &img, nil
}

// Program builds the Program view of an image.
func (img *Image) Program() (Program, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}

	symbols := make([]Symbol, len(img.Symbols))
	for i, s := range img.Symbols {
		symbols[i] = Symbol(s)
	}

	// Every entry point row is exported; the exporter only lists exports.
	entries := make([]Symbol, len(img.EntryPoints))
	for i, s := range img.EntryPoints {
		entries[i] = Symbol{Name: s.Name, Type: s.Type, Address: s.Address, Exported: true}
	}

	slots := make(Slots, len(img.Heap))
	for i, s := range img.Heap {
		slots[i] = HeapSlot{Address: s.Address, Value: s.Value, Type: s.Type}
	}

	return &Static{
		Code:    img.ByteCode,
		Symbols: NewTable(symbols),
		Entries: NewTable(entries),
		Values:  slots,
	}, nil
}

func (img *Image) validate() error {
	seen := make(map[string]bool, len(img.Symbols))
	for i, s := range img.Symbols {
		if s.Name == "" {
			return fmt.Errorf("program: symbols[%d]: empty name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("program: symbols[%d]: duplicate symbol %q", i, s.Name)
		}
		seen[s.Name] = true
	}

	entries := make(map[string]bool, len(img.EntryPoints))
	for i, s := range img.EntryPoints {
		if entries[s.Name] {
			return fmt.Errorf("program: entryPoints[%d]: duplicate entry point %q", i, s.Name)
		}
		entries[s.Name] = true
	}

	addrs := make(map[uint32]bool, len(img.Heap))
	for i, s := range img.Heap {
		if addrs[s.Address] {
			return fmt.Errorf("program: heap[%d]: duplicate address %d", i, s.Address)
		}
		addrs[s.Address] = true
	}
	return nil
}

// CBORDeserializer reads programs exported as a CBOR Image.
type CBORDeserializer struct{}

// Deserialize implements Deserializer.
func (CBORDeserializer) Deserialize(data []byte) (Program, error) {
	img, err := UnmarshalImage(data)
	if err != nil {
		return nil, err
	}
	return img.Program()
}
