package content

import (
	"strings"

	"github.com/entrhq/catalogsync/pkg/types"
)

// ProductType groups items that share copy: what to emphasise and where the
// product is typically used.
type ProductType struct {
	Key          string
	Label        string
	Keywords     []string
	Focus        string
	Applications string
}

// Generic is used when no keyword matches.
var Generic = ProductType{
	Key:          "generico",
	Label:        "Equipo",
	Focus:        "calidad y rendimiento",
	Applications: "uso general",
}

// productTypes is checked in order; the first keyword hit wins.
var productTypes = []ProductType{
	{
		Key:          "grupo_electrogeno",
		Label:        "Grupo electrógeno",
		Keywords:     []string{"generador", "grupo electrógeno", "grupo electrogeno", "kva", "kw"},
		Focus:        "potencia, autonomía y motor",
		Applications: "respaldo energético, obras e industria",
	},
	{
		Key:          "compresor",
		Label:        "Compresor",
		Keywords:     []string{"compresor", "psi", "bar", "aire comprimido"},
		Focus:        "presión, caudal y tanque",
		Applications: "talleres, pintura y herramientas neumáticas",
	},
	{
		Key:          "motobomba",
		Label:        "Motobomba",
		Keywords:     []string{"motobomba", "bomba", "caudal", "litros"},
		Focus:        "caudal, altura máxima y succión",
		Applications: "riego, drenaje y construcción",
	},
	{
		Key:          "motocultivador",
		Label:        "Motocultivador",
		Keywords:     []string{"motocultivador", "cultivador", "labranza"},
		Focus:        "potencia, ancho de trabajo y profundidad",
		Applications: "agricultura, huertas y preparación de suelo",
	},
}

// DetectProductType classifies an item from its name, family and model.
func DetectProductType(item types.Item) ProductType {
	haystack := strings.ToLower(strings.Join([]string{item.Name, item.Family, item.Model}, " "))
	for _, pt := range productTypes {
		for _, kw := range pt.Keywords {
			if strings.Contains(haystack, kw) {
				return pt
			}
		}
	}
	return Generic
}
