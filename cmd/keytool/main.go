// Command keytool writes the encrypted key file used as the oracle updater's
// fallback key. The private key and password are read from the environment
// so they never appear in the process arguments.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"

	"github.com/alanyoungcy/web3dona/internal/crypto"
)

const (
	envPrivateKey  = "WEB3DONA_WALLET_PRIVATE_KEY"
	envKeyPassword = "WEB3DONA_WALLET_KEY_PASSWORD"
)

func main() {
	out := flag.String("out", "oracle.key.json", "path of the key file to write")
	flag.Parse()

	if err := run(*out); err != nil {
		fmt.Fprintf(os.Stderr, "keytool: %v\n", err)
		os.Exit(1)
	}
}

func run(out string) error {
	_ = godotenv.Load()

	secret := strings.TrimPrefix(strings.TrimSpace(os.Getenv(envPrivateKey)), "0x")
	password := os.Getenv(envKeyPassword)
	if secret == "" || password == "" {
		return fmt.Errorf("%s and %s must be set", envPrivateKey, envKeyPassword)
	}

	key, err := ethcrypto.HexToECDSA(secret)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()

	data, err := crypto.EncryptKey(secret, password, address)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("wrote key file for %s to %s\n", address, out)
	return nil
}
