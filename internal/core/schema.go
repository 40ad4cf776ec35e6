package core

// schema.go defines the per-import-type field schemas: which logical fields
// exist, which are required, and which spreadsheet headers auto-map to them.
// Clients must treat these as server-side configuration; the required-field
// set is returned with every preview so the UI never hardcodes it.

// FieldKind tells the row builder how to parse a mapped cell.
type FieldKind int

const (
	KindText FieldKind = iota
	KindDate
	KindMonth
	KindMoney
	KindFloat
	KindInt
	KindRideStatus
)

// FieldSpec describes one logical field of an import schema.
type FieldSpec struct {
	Name     string   // logical field name, used as the mapping key
	Aliases  []string // header names that auto-map, matched case-insensitively
	Required bool
	Kind     FieldKind
}

// ImportSchema is the full field set for one import type.
type ImportSchema struct {
	Type   ImportType
	Fields []FieldSpec
}

// RequiredFields returns the names of all required fields, in schema order.
func (s ImportSchema) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// OptionalFields returns the names of all optional fields, in schema order.
func (s ImportSchema) OptionalFields() []string {
	var out []string
	for _, f := range s.Fields {
		if !f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Field looks up a field spec by logical name.
func (s ImportSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

var schemas = map[ImportType]ImportSchema{
	ImportRides: {
		Type: ImportRides,
		Fields: []FieldSpec{
			{Name: "data", Required: true, Kind: KindDate,
				Aliases: []string{"data", "date"}},
			{Name: "usuario_nome", Required: true, Kind: KindText,
				Aliases: []string{"usuario_nome", "usuario", "cliente", "nome_usuario", "nome usuário"}},
			{Name: "motorista_nome", Required: true, Kind: KindText,
				Aliases: []string{"motorista_nome", "motorista", "driver", "nome motorista"}},
			{Name: "municipio", Required: true, Kind: KindText,
				Aliases: []string{"municipio", "cidade", "city"}},
			{Name: "status", Required: true, Kind: KindRideStatus,
				Aliases: []string{"status", "situacao", "situação"}},
			{Name: "usuario_telefone", Kind: KindText,
				Aliases: []string{"usuario_telefone", "telefone_usuario", "tel_usuario", "tel usuário"}},
			{Name: "valor", Kind: KindMoney,
				Aliases: []string{"valor", "preco", "price", "preço"}},
			{Name: "distancia", Kind: KindFloat,
				Aliases: []string{"distancia", "distance", "distância"}},
			{Name: "tempo_corrida", Kind: KindInt,
				Aliases: []string{"tempo_corrida", "tempo", "duration", "duração"}},
			{Name: "avaliacao", Kind: KindInt,
				Aliases: []string{"avaliacao", "rating", "nota", "avaliação"}},
			{Name: "motivo_cancelamento", Kind: KindText,
				Aliases: []string{"motivo_cancelamento", "motivo", "reason"}},
		},
	},
	ImportDrivers: {
		Type: ImportDrivers,
		Fields: []FieldSpec{
			{Name: "nome", Required: true, Kind: KindText,
				Aliases: []string{"nome", "name"}},
			{Name: "municipio", Required: true, Kind: KindText,
				Aliases: []string{"municipio", "cidade", "city"}},
			{Name: "telefone", Kind: KindText,
				Aliases: []string{"telefone", "phone", "tel"}},
			{Name: "status", Kind: KindText,
				Aliases: []string{"status", "situacao", "situação"}},
			{Name: "data_cadastro", Kind: KindDate,
				Aliases: []string{"data_cadastro", "cadastro", "registration_date", "data cadastro"}},
		},
	},
	ImportTargets: {
		Type: ImportTargets,
		Fields: []FieldSpec{
			{Name: "municipio", Required: true, Kind: KindText,
				Aliases: []string{"municipio", "cidade", "city"}},
			{Name: "mes", Required: true, Kind: KindMonth,
				Aliases: []string{"mes", "month", "data", "mês"}},
			{Name: "meta_corridas", Required: true, Kind: KindInt,
				Aliases: []string{"meta_corridas", "meta", "target_rides", "meta corridas"}},
			{Name: "meta_receita", Kind: KindMoney,
				Aliases: []string{"meta_receita", "receita", "target_revenue", "meta receita"}},
			{Name: "meta_motoristas", Kind: KindInt,
				Aliases: []string{"meta_motoristas", "motoristas", "target_drivers", "meta motoristas"}},
		},
	},
}

// Schema returns the field schema for an import type.
func Schema(t ImportType) (ImportSchema, bool) {
	s, ok := schemas[t]
	return s, ok
}

// ImportTypes lists all supported import types in a stable order.
func ImportTypes() []ImportType {
	return []ImportType{ImportRides, ImportDrivers, ImportTargets}
}
