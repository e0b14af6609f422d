package spf

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// MessagePack codec for reports. The field names mirror the JSON wire
// contract so both encodings stay interchangeable.

var (
	_ msgp.Marshaler   = (*ValidationReport)(nil)
	_ msgp.Unmarshaler = (*ValidationReport)(nil)
	_ msgp.Sizer       = (*ValidationReport)(nil)
	_ msgp.Marshaler   = (*Issue)(nil)
	_ msgp.Unmarshaler = (*Issue)(nil)
	_ msgp.Sizer       = (*Issue)(nil)
)

// ToMessagePack serializes the report to MessagePack format.
func (r *ValidationReport) ToMessagePack() ([]byte, error) {
	return r.MarshalMsg(nil)
}

// FromMessagePack deserializes a report from MessagePack format.
func FromMessagePack(data []byte) (*ValidationReport, error) {
	r := new(ValidationReport)
	extra, err := r.UnmarshalMsg(data)
	if err != nil {
		return nil, fmt.Errorf("spf: decoding report: %w", err)
	}
	if len(extra) > 0 {
		return nil, fmt.Errorf("spf: %d trailing bytes after report", len(extra))
	}
	return r, nil
}

// MarshalMsg implements msgp.Marshaler.
func (r *ValidationReport) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, r.Msgsize())

	o = msgp.AppendMapHeader(o, 10)
	o = msgp.AppendString(o, "domain")
	o = msgp.AppendString(o, r.Domain)
	o = msgp.AppendString(o, "is_valid")
	o = msgp.AppendBool(o, r.IsValid)
	o = msgp.AppendString(o, "spf_record")
	o = msgp.AppendString(o, r.SPFRecord)
	o = msgp.AppendString(o, "dns_lookups")
	o = msgp.AppendInt(o, r.DNSLookups)
	o = msgp.AppendString(o, "syntax_valid")
	o = msgp.AppendBool(o, r.SyntaxValid)
	o = msgp.AppendString(o, "has_soft_fail")
	o = msgp.AppendBool(o, r.HasSoftFail)
	o = msgp.AppendString(o, "has_hard_fail")
	o = msgp.AppendBool(o, r.HasHardFail)

	o = msgp.AppendString(o, "issues")
	o = msgp.AppendArrayHeader(o, uint32(len(r.Issues)))
	for i := range r.Issues {
		var err error
		o, err = r.Issues[i].MarshalMsg(o)
		if err != nil {
			return o, err
		}
	}

	o = msgp.AppendString(o, "recommendations")
	o = msgp.AppendArrayHeader(o, uint32(len(r.Recommendations)))
	for _, rec := range r.Recommendations {
		o = msgp.AppendString(o, rec)
	}

	o = msgp.AppendString(o, "timestamp")
	o = msgp.AppendString(o, r.Timestamp)

	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (r *ValidationReport) UnmarshalMsg(b []byte) ([]byte, error) {
	fields, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}

	for ; fields > 0; fields-- {
		var key []byte
		key, o, err = msgp.ReadMapKeyZC(o)
		if err != nil {
			return o, err
		}

		switch string(key) {
		case "domain":
			r.Domain, o, err = msgp.ReadStringBytes(o)
		case "is_valid":
			r.IsValid, o, err = msgp.ReadBoolBytes(o)
		case "spf_record":
			r.SPFRecord, o, err = msgp.ReadStringBytes(o)
		case "dns_lookups":
			r.DNSLookups, o, err = msgp.ReadIntBytes(o)
		case "syntax_valid":
			r.SyntaxValid, o, err = msgp.ReadBoolBytes(o)
		case "has_soft_fail":
			r.HasSoftFail, o, err = msgp.ReadBoolBytes(o)
		case "has_hard_fail":
			r.HasHardFail, o, err = msgp.ReadBoolBytes(o)
		case "issues":
			var n uint32
			n, o, err = msgp.ReadArrayHeaderBytes(o)
			if err != nil {
				return o, err
			}
			r.Issues = make([]Issue, n)
			for i := range r.Issues {
				o, err = r.Issues[i].UnmarshalMsg(o)
				if err != nil {
					return o, err
				}
			}
		case "recommendations":
			var n uint32
			n, o, err = msgp.ReadArrayHeaderBytes(o)
			if err != nil {
				return o, err
			}
			r.Recommendations = make([]string, n)
			for i := range r.Recommendations {
				r.Recommendations[i], o, err = msgp.ReadStringBytes(o)
				if err != nil {
					return o, err
				}
			}
		case "timestamp":
			r.Timestamp, o, err = msgp.ReadStringBytes(o)
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return o, err
		}
	}

	return o, nil
}

// Msgsize implements msgp.Sizer, returning an upper bound on the
// encoded size.
func (r *ValidationReport) Msgsize() int {
	size := msgp.MapHeaderSize +
		8 + msgp.StringPrefixSize + len(r.Domain) +
		10 + msgp.BoolSize +
		12 + msgp.StringPrefixSize + len(r.SPFRecord) +
		13 + msgp.IntSize +
		14 + msgp.BoolSize +
		15 + msgp.BoolSize +
		15 + msgp.BoolSize +
		8 + msgp.ArrayHeaderSize +
		17 + msgp.ArrayHeaderSize +
		11 + msgp.StringPrefixSize + len(r.Timestamp)

	for i := range r.Issues {
		size += r.Issues[i].Msgsize()
	}
	for _, rec := range r.Recommendations {
		size += msgp.StringPrefixSize + len(rec)
	}
	return size
}

// MarshalMsg implements msgp.Marshaler.
func (i *Issue) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, i.Msgsize())

	o = msgp.AppendMapHeader(o, 5)
	o = msgp.AppendString(o, "type")
	o = msgp.AppendString(o, string(i.Type))
	o = msgp.AppendString(o, "message")
	o = msgp.AppendString(o, i.Message)
	o = msgp.AppendString(o, "description")
	o = msgp.AppendString(o, i.Description)
	o = msgp.AppendString(o, "recommendation")
	o = msgp.AppendString(o, i.Recommendation)
	o = msgp.AppendString(o, "severity")
	o = msgp.AppendInt(o, i.Severity)

	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (i *Issue) UnmarshalMsg(b []byte) ([]byte, error) {
	fields, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}

	for ; fields > 0; fields-- {
		var key []byte
		key, o, err = msgp.ReadMapKeyZC(o)
		if err != nil {
			return o, err
		}

		switch string(key) {
		case "type":
			var s string
			s, o, err = msgp.ReadStringBytes(o)
			i.Type = IssueType(s)
		case "message":
			i.Message, o, err = msgp.ReadStringBytes(o)
		case "description":
			i.Description, o, err = msgp.ReadStringBytes(o)
		case "recommendation":
			i.Recommendation, o, err = msgp.ReadStringBytes(o)
		case "severity":
			i.Severity, o, err = msgp.ReadIntBytes(o)
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return o, err
		}
	}

	return o, nil
}

// Msgsize implements msgp.Sizer.
func (i *Issue) Msgsize() int {
	return msgp.MapHeaderSize +
		6 + msgp.StringPrefixSize + len(i.Type) +
		9 + msgp.StringPrefixSize + len(i.Message) +
		13 + msgp.StringPrefixSize + len(i.Description) +
		16 + msgp.StringPrefixSize + len(i.Recommendation) +
		10 + msgp.IntSize
}
