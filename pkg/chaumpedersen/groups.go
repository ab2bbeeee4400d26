package chaumpedersen

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
)

// DefaultGroup is the group used when no other is configured.
const DefaultGroup = "rfc5054-2048"

// The named groups are safe primes p = 2q+1. The quadratic residues form the
// subgroup of prime order q, so any square other than 1 generates it; 4 and 9
// are used as alpha and beta.
var (
	namedAlpha = big.NewInt(4)
	namedBeta  = big.NewInt(9)
)

type namedGroup struct {
	prime string

	once   sync.Once
	params *Params
	err    error
}

func (g *namedGroup) load(name string) (*Params, error) {
	g.once.Do(func() {
		p, ok := new(big.Int).SetString(g.prime, 16)
		if !ok {
			g.err = fmt.Errorf("%w: malformed prime for group %s", ErrInvalidParams, name)
			return
		}
		q := new(big.Int).Rsh(p, 1)
		g.params, g.err = NewParams(Config{
			Name:  name,
			P:     p,
			Q:     q,
			Alpha: namedAlpha,
			Beta:  namedBeta,
		})
	})
	return g.params, g.err
}

var namedGroups = map[string]*namedGroup{
	// RFC 5054 appendix A, 1024-bit group.
	"rfc5054-1024": {prime: strings.Join([]string{
		"EEAF0AB9ADB38DD69C33F80AFA8FC5E86072618775FF3C0B9EA2314C9C256576",
		"D674DF7496EA81D3383B4813D692C6E0E0D5D8E250B98BE48E495C1D6089DAD1",
		"5DC7D7B46154D6B6CE8EF4AD69B15D4982559B297BCF1885C529F566660E57EC",
		"68EDBC3C05726CC02FD4CBF4976EAA9AFD5138FE8376435B9FC61D2FC0EB06E3",
	}, "")},
	// RFC 5054 appendix A, 1536-bit group.
	"rfc5054-1536": {prime: strings.Join([]string{
		"9DEF3CAFB939277AB1F12A8617A47BBBDBA51DF499AC4C80BEEEA9614B19CC4D",
		"5F4F5F556E27CBDE51C6A94BE4607A291558903BA0D0F84380B655BB9A22E8DC",
		"DF028A7CEC67F0D08134B1C8B97989149B609E0BE3BAB63D47548381DBC5B1FC",
		"764E3F4B53DD9DA1158BFD3E2B9C8CF56EDF019539349627DB2FD53D24B7C486",
		"65772E437D6C7F8CE442734AF7CCB7AE837C264AE3A9BEB87F8A2FE9B8B5292E",
		"5A021FFF5E91479E8CE7A28C2442C6F315180F93499A234DCF76E3FED135F9BB",
	}, "")},
	// RFC 5054 appendix A, 2048-bit group.
	"rfc5054-2048": {prime: strings.Join([]string{
		"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050",
		"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50",
		"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8",
		"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B",
		"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748",
		"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6",
		"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6",
		"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73",
	}, "")},
	// RFC 3526 group 15 (3072-bit MODP).
	"rfc3526-3072": {prime: strings.Join([]string{
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74",
		"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437",
		"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED",
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05",
		"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB",
		"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B",
		"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718",
		"3995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D04507A33",
		"A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7",
		"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864",
		"D87602733EC86A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E2",
		"08E24FA074E5AB3143DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF",
	}, "")},
	// RFC 3526 group 16 (4096-bit MODP).
	"rfc3526-4096": {prime: strings.Join([]string{
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74",
		"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437",
		"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED",
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05",
		"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB",
		"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B",
		"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718",
		"3995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D04507A33",
		"A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7",
		"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864",
		"D87602733EC86A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E2",
		"08E24FA074E5AB3143DB5BFCE0FD108E4B82D120A92108011A723C12A787E6D7",
		"88719A10BDBA5B2699C327186AF4E23C1A946834B6150BDA2583E9CA2AD44CE8",
		"DBBBC2DB04DE8EF92E8EFC141FBECAA6287C59474E6BC05D99B2964FA090C3A2",
		"233BA186515BE7ED1F612970CEE2D7AFB81BDD762170481CD0069127D5B05AA9",
		"93B4EA988D8FDDC186FFB7DC90A6C08F4DF435C934063199FFFFFFFFFFFFFFFF",
	}, "")},
}

// Group returns the parameters of a named group. Parameters are validated the
// first time a group is requested and shared afterwards.
func Group(name string) (*Params, error) {
	g, ok := namedGroups[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	return g.load(strings.ToLower(name))
}

// GroupNames lists the groups understood by Group.
func GroupNames() []string {
	names := make([]string, 0, len(namedGroups))
	for name := range namedGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
