package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostKind tipo de costo registrado.
type CostKind string

// Tipos de costo. Solo PURCHASE participa del costo promedio corrido.
const (
	CostKindPurchase     CostKind = "PURCHASE"
	CostKindFreight      CostKind = "FREIGHT"
	CostKindStorage      CostKind = "STORAGE"
	CostKindMaintenance  CostKind = "MAINTENANCE"
	CostKindDepreciation CostKind = "DEPRECIATION"
	CostKindICMS         CostKind = "ICMS"
	CostKindIPI          CostKind = "IPI"
	CostKindPIS          CostKind = "PIS"
	CostKindCOFINS       CostKind = "COFINS"
	CostKindICMSST       CostKind = "ICMS_ST"
	CostKindISS          CostKind = "ISS"
	CostKindIRPJ         CostKind = "IRPJ"
	CostKindCSLL         CostKind = "CSLL"
	CostKindOther        CostKind = "OTHER"
)

// Valid indica si el tipo de costo es conocido.
func (k CostKind) Valid() bool {
	switch k {
	case CostKindPurchase, CostKindFreight, CostKindStorage, CostKindMaintenance, CostKindDepreciation,
		CostKindICMS, CostKindIPI, CostKindPIS, CostKindCOFINS, CostKindICMSST,
		CostKindISS, CostKindIRPJ, CostKindCSLL, CostKindOther:
		return true
	}
	return false
}

// Taxes desglose fijo de impuestos de una entrada de costo. Un campo nil no aporta.
type Taxes struct {
	ICMS   *decimal.Decimal `json:"icms,omitempty"`    // valor agregado
	IPI    *decimal.Decimal `json:"ipi,omitempty"`     // consumo (excise)
	PIS    *decimal.Decimal `json:"pis,omitempty"`     // contribución
	COFINS *decimal.Decimal `json:"cofins,omitempty"`  // contribución
	ICMSST *decimal.Decimal `json:"icms_st,omitempty"` // sustitución tributaria
	ISS    *decimal.Decimal `json:"iss,omitempty"`     // servicios
	IRPJ   *decimal.Decimal `json:"irpj,omitempty"`    // retención
	CSLL   *decimal.Decimal `json:"csll,omitempty"`    // retención
}

// Fields devuelve los campos en orden fijo.
func (t Taxes) Fields() []*decimal.Decimal {
	return []*decimal.Decimal{t.ICMS, t.IPI, t.PIS, t.COFINS, t.ICMSST, t.ISS, t.IRPJ, t.CSLL}
}

// Total suma los impuestos presentes; los ausentes cuentan como cero.
func (t Taxes) Total() decimal.Decimal {
	total := decimal.Zero
	for _, f := range t.Fields() {
		if f != nil {
			total = total.Add(*f)
		}
	}
	return total
}

// CostEntry una fila por evento con costo (compra, flete, impuesto) de un ítem.
// AverageCost se sobrescribe en cada recálculo del ítem; el resto es inmutable salvo edición explícita.
type CostEntry struct {
	ID               string
	ItemID           string
	LotID            string
	Kind             CostKind
	Value            decimal.Decimal
	Quantity         decimal.Decimal
	UnitCost         decimal.Decimal
	AverageCost      decimal.Decimal
	FreightAllocated decimal.Decimal
	BaseValue        decimal.Decimal
	Taxes            Taxes
	CostDate         time.Time
	Actor            string
	Description      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TaxTotal total de impuestos de la entrada.
func (c *CostEntry) TaxTotal() decimal.Decimal { return c.Taxes.Total() }

// TotalWithTaxes valor más impuestos.
func (c *CostEntry) TotalWithTaxes() decimal.Decimal { return c.Value.Add(c.TaxTotal()) }

// TotalWithFreight valor más impuestos más flete prorrateado.
func (c *CostEntry) TotalWithFreight() decimal.Decimal {
	return c.TotalWithTaxes().Add(c.FreightAllocated)
}
