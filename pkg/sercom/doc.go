// Package sercom describes SAMD21 SERCOM units: identifiers, pin
// multiplexing, register layout, the register access Device and the
// Pool arbitrating units between controllers.
package sercom
