package tablemap

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxColumnLength is the largest encoded text stored in a single column.
	// Longer complex values are split over several columns.
	MaxColumnLength = 32 * 1024

	// ExpandedColumnsName is the reserved column holding the codec-encoded
	// map from field name to chunk count.
	ExpandedColumnsName = "__ExpandedColumns"
)

// ExpandedName returns the column name of chunk index of an overflowed field.
func ExpandedName(field string, index int) string {
	return field + "__" + strconv.Itoa(index)
}

// KeyFunc resolves the row key of a record.
type KeyFunc[T any] func(item *T) Key

// ConverterOptions configures a Converter.
type ConverterOptions struct {
	Codec           Codec    // Encoder for complex fields. Default is JSONCodec.
	MaxColumnLength int      // Chunking threshold in bytes. Default is MaxColumnLength.
	Metrics         *Metrics // Optional overflow metrics
}

// Converter maps records of type T to rows and back, splitting complex field
// values that exceed the column size limit into numbered chunk columns.
type Converter[T any] struct {
	schema  *Schema[T]
	key     KeyFunc[T]
	codec   Codec
	maxLen  int
	metrics *Metrics
}

// NewConverter creates a converter for the record type described by schema.
func NewConverter[T any](schema *Schema[T], key KeyFunc[T], opts ...func(*ConverterOptions)) *Converter[T] {
	options := ConverterOptions{
		Codec:           JSONCodec{},
		MaxColumnLength: MaxColumnLength,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxColumnLength <= 0 {
		options.MaxColumnLength = MaxColumnLength
	}

	return &Converter[T]{
		schema:  schema,
		key:     key,
		codec:   options.Codec,
		maxLen:  options.MaxColumnLength,
		metrics: options.Metrics,
	}
}

// TypeName returns the name of the record type.
func (c *Converter[T]) TypeName() string { return c.schema.Name() }

// Schema returns the record schema.
func (c *Converter[T]) Schema() *Schema[T] { return c.schema }

// Key resolves the row key of item.
func (c *Converter[T]) Key(item *T) Key { return c.key(item) }

// Encode converts item into a row.
func (c *Converter[T]) Encode(item *T) (*Row, error) {
	key := c.key(item)
	row := NewRow(key.Partition, key.Row)
	expanded := make(map[string]int)

	for _, f := range c.schema.fields {
		if f.kind != 0 {
			if v, ok := f.get(item); ok {
				row.Set(f.name, v)
			}
			continue
		}

		text, err := f.encode(item, c.codec)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s.%s: %w", c.schema.name, f.name, err)
		}
		if text == "null" {
			continue // the table service cannot store nulls
		}
		if len(text) <= c.maxLen {
			row.Set(f.name, StringValue(text))
			continue
		}

		chunks := splitByLength(text, c.maxLen)
		for i, chunk := range chunks {
			row.Set(ExpandedName(f.name, i), StringValue(chunk))
		}
		expanded[f.name] = len(chunks)
		c.metrics.observeOverflow(c.schema.name, len(chunks))
	}

	if len(expanded) > 0 {
		text, err := c.codec.Marshal(expanded)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s.%s: %w", c.schema.name, ExpandedColumnsName, err)
		}
		row.Set(ExpandedColumnsName, StringValue(text))
	}

	return row, nil
}

// Decode converts row into a new record. Fields without a column keep their zero value.
func (c *Converter[T]) Decode(row *Row) (*T, error) {
	item := new(T)

	var expanded map[string]int
	if raw, ok := row.Get(ExpandedColumnsName); ok {
		text, ok := raw.Text()
		if !ok {
			return nil, c.unhandled(ExpandedColumnsName, raw)
		}
		if err := c.codec.Unmarshal(text, &expanded); err != nil {
			return nil, &DecodeError{TypeName: c.schema.name, Field: ExpandedColumnsName, Err: err}
		}
	}

	for _, f := range c.schema.fields {
		val, found, err := c.column(row, f.name, expanded)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}

		if f.kind != 0 {
			if !f.set(item, val) {
				return nil, &MappingError{
					TypeName: c.schema.name,
					Field:    f.name,
					Reason:   fmt.Sprintf("stored %s cannot be assigned to %s field", val.Kind(), f.kind),
				}
			}
			continue
		}

		text, ok := val.Text()
		if !ok {
			return nil, c.unhandled(f.name, val)
		}
		if err := f.decode(item, text, c.codec); err != nil {
			return nil, &DecodeError{TypeName: c.schema.name, Field: f.name, Err: err}
		}
	}

	return item, nil
}

// column returns the value stored for a field, joining its chunks if the field overflowed.
func (c *Converter[T]) column(row *Row, name string, expanded map[string]int) (Value, bool, error) {
	count, ok := expanded[name]
	if !ok {
		v, found := row.Get(name)
		return v, found, nil
	}

	var sb strings.Builder
	for i := 0; i < count; i++ {
		chunkName := ExpandedName(name, i)
		chunk, found := row.Get(chunkName)
		if !found {
			return Value{}, false, &MappingError{
				TypeName: c.schema.name,
				Field:    name,
				Reason:   fmt.Sprintf("missing chunk column %s of %d", chunkName, count),
			}
		}
		text, ok := chunk.Text()
		if !ok {
			return Value{}, false, c.unhandled(chunkName, chunk)
		}
		sb.WriteString(text)
	}
	return StringValue(sb.String()), true, nil
}

func (c *Converter[T]) unhandled(field string, v Value) error {
	return &MappingError{
		TypeName: c.schema.name,
		Field:    field,
		Reason:   fmt.Sprintf("unhandled type: (%v) '%s'", v.Interface(), v.Kind()),
	}
}

// splitByLength splits s into chunks of at most max bytes without splitting a
// UTF-8 sequence.
func splitByLength(s string, max int) []string {
	chunks := make([]string, 0, (len(s)+max-1)/max)
	for len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = max
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}
