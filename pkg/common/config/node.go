package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// FinalizeNodes fills API keys and substitutes ${VAR} references in configured
// endpoints and headers. globalKey is used when a chain has no key of its own.
func (cc *ChainsConfig) FinalizeNodes(globalKey string) error {
	for chainName, chain := range cc.Items {
		key := chain.ResolveAPIKey(globalKey)

		for _, n := range []*NetworkCfg{&chain.Mainnet, &chain.Testnet} {
			if n.RPCURL == "" {
				continue
			}
			n.RPCURL = SubstituteKey(n.RPCURL, key)
			u, err := url.Parse(n.RPCURL)
			if err != nil || u.Scheme == "" {
				return fmt.Errorf("%s: invalid rpc url: %q", chainName, n.RPCURL)
			}
		}
		for k, v := range chain.Headers {
			chain.Headers[k] = substituteEnvVars(v)
		}
		cc.Items[chainName] = chain
	}
	return nil
}

func (c ChainConfig) ResolveAPIKey(globalKey string) string {
	if c.ApiKey != "" {
		return c.ApiKey
	}
	if c.ApiKeyEnv != "" {
		if v := os.Getenv(c.ApiKeyEnv); v != "" {
			return v
		}
	}
	return globalKey
}

// SubstituteKey replaces the ${API_KEY} placeholder in s.
func SubstituteKey(s, key string) string {
	if s == "" || key == "" {
		return s
	}
	return strings.ReplaceAll(s, "${API_KEY}", key)
}

func substituteEnvVars(s string) string {
	if s == "" {
		return s
	}
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			break
		}
		end += start
		varName := s[start+2 : end]
		envValue := os.Getenv(varName)
		s = strings.ReplaceAll(s, "${"+varName+"}", envValue)
	}
	return s
}
