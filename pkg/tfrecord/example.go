package tfrecord

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Feature is one named value in an Example. Exactly one of the three lists
// should be set; a Feature with none set encodes as an empty message.
type Feature struct {
	BytesList [][]byte
	FloatList []float32
	Int64List []int64
}

func BytesFeature(b []byte) Feature {
	return Feature{BytesList: [][]byte{b}}
}

func BytesListFeature(b [][]byte) Feature {
	return Feature{BytesList: b}
}

func FloatListFeature(v []float32) Feature {
	return Feature{FloatList: v}
}

func Int64Feature(v int64) Feature {
	return Feature{Int64List: []int64{v}}
}

func Int64ListFeature(v []int64) Feature {
	return Feature{Int64List: v}
}

// Example is the payload of one record: feature name -> value.
type Example map[string]Feature

// Wire schema of the Example payload. We encode it directly with protowire
// rather than generated message types, since the schema is tiny and frozen:
//
//	Example:  features = 1 (Features)
//	Features: feature  = 1 (repeated map entry; key = 1 string, value = 2 Feature)
//	Feature:  bytes_list = 1, float_list = 2, int64_list = 3
//	each list: value = 1 (bytes repeated; floats and int64s packed)
const (
	fieldFeatures  = 1
	fieldMapEntry  = 1
	fieldMapKey    = 1
	fieldMapValue  = 2
	fieldBytesList = 1
	fieldFloatList = 2
	fieldInt64List = 3
	fieldListValue = 1
)

// Marshal encodes the Example. Keys are emitted in sorted order so that
// encoding is deterministic.
func (e Example) Marshal() []byte {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	features := []byte{}
	for _, k := range keys {
		entry := protowire.AppendTag(nil, fieldMapKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, fieldMapValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, e[k].marshal())

		features = protowire.AppendTag(features, fieldMapEntry, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}

	out := protowire.AppendTag(nil, fieldFeatures, protowire.BytesType)
	return protowire.AppendBytes(out, features)
}

func (f Feature) marshal() []byte {
	switch {
	case f.BytesList != nil:
		list := []byte{}
		for _, b := range f.BytesList {
			list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
			list = protowire.AppendBytes(list, b)
		}
		out := protowire.AppendTag(nil, fieldBytesList, protowire.BytesType)
		return protowire.AppendBytes(out, list)
	case f.FloatList != nil:
		packed := []byte{}
		for _, v := range f.FloatList {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		list := []byte{}
		if len(packed) > 0 {
			list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
		out := protowire.AppendTag(nil, fieldFloatList, protowire.BytesType)
		return protowire.AppendBytes(out, list)
	case f.Int64List != nil:
		packed := []byte{}
		for _, v := range f.Int64List {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		list := []byte{}
		if len(packed) > 0 {
			list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
		out := protowire.AppendTag(nil, fieldInt64List, protowire.BytesType)
		return protowire.AppendBytes(out, list)
	}
	return nil
}

// UnmarshalExample decodes a record payload. Unknown fields are skipped;
// duplicate keys last-wins. Returned byte slices alias data.
func UnmarshalExample(data []byte) (Example, error) {
	ex := Example{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("example tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if num == fieldFeatures && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("example features: %w", protowire.ParseError(n))
			}
			if err := parseFeatures(v, ex); err != nil {
				return nil, err
			}
			data = data[n:]
		} else {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("example field %v: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return ex, nil
}

func parseFeatures(data []byte, ex Example) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("features tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if num == fieldMapEntry && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("features entry: %w", protowire.ParseError(n))
			}
			if err := parseEntry(v, ex); err != nil {
				return err
			}
			data = data[n:]
		} else {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("features field %v: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

func parseEntry(data []byte, ex Example) error {
	key := ""
	feature := Feature{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("entry tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == fieldMapKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fmt.Errorf("entry key: %w", protowire.ParseError(n))
			}
			key = v
			data = data[n:]
		case num == fieldMapValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("entry value: %w", protowire.ParseError(n))
			}
			f, err := parseFeature(v)
			if err != nil {
				return err
			}
			feature = f
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("entry field %v: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	ex[key] = feature
	return nil
}

func parseFeature(data []byte) (Feature, error) {
	f := Feature{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return f, fmt.Errorf("feature tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.BytesType {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return f, fmt.Errorf("feature field %v: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return f, fmt.Errorf("feature list: %w", protowire.ParseError(n))
		}
		data = data[n:]
		var err error
		switch num {
		case fieldBytesList:
			f.BytesList, err = parseBytesList(v)
		case fieldFloatList:
			f.FloatList, err = parseFloatList(v)
		case fieldInt64List:
			f.Int64List, err = parseInt64List(v)
		}
		if err != nil {
			return f, err
		}
	}
	return f, nil
}

func parseBytesList(data []byte) ([][]byte, error) {
	out := [][]byte{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("bytes list tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if num == fieldListValue && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("bytes list value: %w", protowire.ParseError(n))
			}
			out = append(out, v)
			data = data[n:]
		} else {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("bytes list field %v: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return out, nil
}

func parseFloatList(data []byte) ([]float32, error) {
	out := []float32{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("float list tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == fieldListValue && typ == protowire.BytesType:
			// packed
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("float list packed: %w", protowire.ParseError(n))
			}
			for len(packed) > 0 {
				v, n := protowire.ConsumeFixed32(packed)
				if n < 0 {
					return nil, fmt.Errorf("float list value: %w", protowire.ParseError(n))
				}
				out = append(out, math.Float32frombits(v))
				packed = packed[n:]
			}
			data = data[n:]
		case num == fieldListValue && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return nil, fmt.Errorf("float list value: %w", protowire.ParseError(n))
			}
			out = append(out, math.Float32frombits(v))
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("float list field %v: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return out, nil
}

func parseInt64List(data []byte) ([]int64, error) {
	out := []int64{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("int64 list tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == fieldListValue && typ == protowire.BytesType:
			// packed
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("int64 list packed: %w", protowire.ParseError(n))
			}
			for len(packed) > 0 {
				v, n := protowire.ConsumeVarint(packed)
				if n < 0 {
					return nil, fmt.Errorf("int64 list value: %w", protowire.ParseError(n))
				}
				out = append(out, int64(v))
				packed = packed[n:]
			}
			data = data[n:]
		case num == fieldListValue && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("int64 list value: %w", protowire.ParseError(n))
			}
			out = append(out, int64(v))
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("int64 list field %v: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return out, nil
}
