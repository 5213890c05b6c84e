package registry

import "fmt"

// Built-in registry names.
const (
	KEXPureOQS4    = "kex-pq-oqs4"
	KEXPureOQS52   = "kex-pq-oqs52"
	KEXHybridOQS52 = "kex-hybrid-oqs52"
	SigPure        = "sig-pq"
	SigHybrid      = "sig-hybrid"
)

var builtins = []Registry{
	{
		Name:  KEXPureOQS4,
		Suite: SuiteKEX,
		// BIKE L5 is not supported by oqsprovider 0.4.0; 5700 stays reserved.
		Entries: []Entry{
			{"x25519", 5000},
			{"x448", 5100},
			{"lightsaber", 5200},
			{"saber", 5300},
			{"firesaber", 5400},
			{"bikel1", 5500},
			{"bikel3", 5600},
			{"kyber512", 5800},
			{"kyber768", 5900},
			{"kyber1024", 6000},
			{"frodo640aes", 6100},
			{"frodo976aes", 6200},
			{"frodo1344aes", 6300},
			{"hqc128", 6400},
			{"hqc192", 6500},
			{"hqc256", 6600},
			{"ntru_hps2048509", 6700},
			{"ntru_hps2048677", 6800},
			{"ntru_hps4096821", 6900},
			{"ntru_hps40961229", 7000},
			{"ntru_hrss701", 7100},
			{"ntru_hrss1373", 7200},
			{"ntrulpr653", 7300},
			{"ntrulpr761", 7400},
			{"ntrulpr857", 7500},
			{"ntrulpr1277", 7600},
			{"sntrup653", 7700},
			{"sntrup761", 7800},
			{"sntrup857", 7900},
			{"sntrup1277", 8000},
		},
	},
	{
		Name:  KEXPureOQS52,
		Suite: SuiteKEX,
		Entries: []Entry{
			{"x25519", 5000},
			{"x448", 5100},
			{"bikel1", 5500},
			{"bikel3", 5600},
			{"bikel5", 5700},
			{"kyber512", 5800},
			{"kyber768", 5900},
			{"kyber1024", 6000},
			{"frodo640aes", 6100},
			{"frodo976aes", 6200},
			{"frodo1344aes", 6300},
			{"hqc128", 6400},
			{"hqc192", 6500},
			{"hqc256", 6600},
		},
	},
	{
		Name:  KEXHybridOQS52,
		Suite: SuiteKEX,
		Entries: []Entry{
			{"x25519", 5000},
			{"x448", 5100},
			{"P-256", 5200},
			{"P-384", 5300},
			{"P-521", 5400},
			{"p256_bikel1", 9000},
			{"x25519_bikel1", 9100},
			{"p384_bikel3", 9200},
			{"x448_bikel3", 9300},
			{"p521_bikel5", 9400},
			{"p256_kyber512", 9500},
			{"x25519_kyber512", 9600},
			{"p384_kyber768", 9700},
			{"x448_kyber768", 9800},
			{"x25519_kyber768", 9900},
			{"p256_kyber768", 10000},
			{"p521_kyber1024", 10100},
			{"p256_frodo640aes", 10200},
			{"x25519_frodo640aes", 10300},
			{"p384_frodo976aes", 10400},
			{"x448_frodo976aes", 10500},
			{"p521_frodo1344aes", 10600},
			{"p256_hqc128", 10700},
			{"x25519_hqc128", 10800},
			{"p384_hqc192", 10900},
			{"x448_hqc192", 11000},
			{"p521_hqc256", 11100},
		},
	},
	{
		Name:  SigPure,
		Suite: SuiteSig,
		Entries: []Entry{
			{"ED25519", 5000},
			{"prime256v1", 5100},
			{"dilithium2", 5200},
			{"dilithium3", 5300},
			{"dilithium5", 5400},
			{"falcon512", 5500},
			{"falcon1024", 5600},
			{"sphincssha2128fsimple", 5700},
			{"sphincssha2128ssimple", 5800},
			{"sphincssha2256fsimple", 5900},
			{"sphincssha2256ssimple", 6000},
		},
	},
	{
		Name:  SigHybrid,
		Suite: SuiteSig,
		Entries: []Entry{
			{"ED25519", 5000},
			{"prime256v1", 5100},
			{"secp384r1", 5200},
			{"secp521r1", 5300},
			{"p256_dilithium2", 7000},
			{"rsa3072_dilithium2", 7100},
			{"p384_dilithium3", 7200},
			{"p521_dilithium5", 7300},
			{"p256_falcon512", 7400},
			{"rsa3072_falcon512", 7500},
			{"p521_falcon1024", 7600},
		},
	},
}

// Builtin returns a copy of the named built-in registry.
func Builtin(name string) (*Registry, error) {
	for i := range builtins {
		if builtins[i].Name == name {
			return clone(&builtins[i]), nil
		}
	}

	return nil, fmt.Errorf("%w %q", ErrUnknown, name)
}

// BuiltinNames returns the names of the built-in registries.
func BuiltinNames() []string {
	names := make([]string, len(builtins))
	for i, r := range builtins {
		names[i] = r.Name
	}

	return names
}

// Default returns the name of the registry used for a suite when none is
// selected explicitly.
func Default(suite Suite) string {
	if suite == SuiteSig {
		return SigHybrid
	}

	return KEXHybridOQS52
}

func clone(r *Registry) *Registry {
	c := &Registry{Name: r.Name, Suite: r.Suite}
	c.Entries = append([]Entry(nil), r.Entries...)

	return c
}
